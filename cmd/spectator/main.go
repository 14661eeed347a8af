// Command spectator tails a running match over the local feed socket.
// It is the reference consumer for the feed protocol: overlay
// renderers and recording tools follow the same frames this tool
// prints.
//
// Start the match server with FEED_ENABLED=true, then:
//
//	go run ./cmd/spectator [-socket /tmp/hopball-arena.sock] [-all]
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"hopball-arena/internal/feed"
	"hopball-arena/internal/game"
)

const statusInterval = 10 * time.Second

// notable is the default print filter; -all lifts it. Per-shot records
// like ammo_changed would drown the terminal otherwise.
var notable = map[string]bool{
	game.ChangePlayerJoined: true,
	game.ChangePlayerLeft:   true,
	game.ChangeDeath:        true,
	game.ChangeScore:        true,
	game.ChangeTagTransfer:  true,
	game.ChangeHopballPhase: true,
	game.ChangeMatchPhase:   true,
	game.ChangePodiumReady:  true,
	game.ChangeTeardown:     true,
}

func main() {
	socketPath := flag.String("socket", feed.DefaultSocketPath, "feed socket path")
	all := flag.Bool("all", false, "print every change record, not just the notable ones")
	flag.Parse()

	log.SetFlags(log.Ltime)

	sub := feed.NewSubscriber(*socketPath, zap.NewNop())

	sub.OnConnect(func() { log.Println("connected to match server") })
	sub.OnDisconnect(func() { log.Println("lost match server, retrying...") })
	sub.OnHello(func(h feed.HelloFrame) {
		log.Printf("match %s  mode=%s  tick=%d/s", h.MatchID, h.Mode, h.TickRate)
	})
	sub.OnChanges(func(batch []game.Change) {
		for _, ch := range batch {
			if *all || notable[ch.Kind] {
				log.Printf("[%6d] %s", ch.Tick, describeChange(ch))
			}
		}
	})
	sub.OnResult(func(result game.MatchResult) {
		printStandings(result)
	})

	sub.Start()
	defer sub.Stop()
	log.Printf("watching %s (Ctrl+C to stop)", feed.Address(*socketPath))

	go statusLoop(sub)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("spectator stopped")
}

// statusLoop prints a one-line summary of the latest snapshot so the
// terminal shows liveness even when the change stream is quiet.
func statusLoop(sub *feed.Subscriber) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for range ticker.C {
		snap := sub.LatestSnapshot()
		if snap == nil {
			received, reconnects := sub.Stats()
			log.Printf("-- waiting for snapshot (connected=%v frames=%d reconnects=%d)",
				sub.IsConnected(), received, reconnects)
			continue
		}
		log.Printf("-- %s  %ds left  players=%d alive=%d tick=%d",
			snap.Clock.Phase, snap.Clock.SecondsRemaining,
			snap.PlayerCount, snap.AliveCount, snap.Tick)
	}
}

func describeChange(ch game.Change) string {
	switch data := ch.Data.(type) {
	case game.PlayerJoinedData:
		if data.Team != "" {
			return fmt.Sprintf("%s joined team %s as %s", data.Name, data.Team, ch.PlayerID)
		}
		return fmt.Sprintf("%s joined as %s", data.Name, ch.PlayerID)
	case game.DeathData:
		if data.KillerID != "" {
			return fmt.Sprintf("%s killed by %s", ch.PlayerID, data.KillerID)
		}
		return fmt.Sprintf("%s died", ch.PlayerID)
	case game.ScoreData:
		return fmt.Sprintf("%s score %d", ch.PlayerID, data.Score)
	case game.TagData:
		if data.FromID == "" {
			return fmt.Sprintf("%s is it", data.ToID)
		}
		return fmt.Sprintf("%s tagged %s", data.FromID, data.ToID)
	case game.HopballPhaseData:
		if data.HolderID != "" {
			return fmt.Sprintf("hopball %s held by %s, energy %d", data.Phase, data.HolderID, data.Energy)
		}
		return fmt.Sprintf("hopball %s, energy %d", data.Phase, data.Energy)
	case game.MatchPhaseData:
		if data.Phase == game.PhaseCountdown && data.CountdownLeft > 0 {
			return fmt.Sprintf("countdown %ds", data.CountdownLeft)
		}
		return "phase " + data.Phase
	case game.PodiumReadyData:
		return fmt.Sprintf("podium: 1st %s (%d), 2nd %s (%d), 3rd %s (%d)",
			data.FirstName, data.FirstScore, data.SecondName, data.SecondScore,
			data.ThirdName, data.ThirdScore)
	}
	if ch.PlayerID != "" {
		return ch.Kind + " " + ch.PlayerID
	}
	return ch.Kind
}

func printStandings(result game.MatchResult) {
	var b strings.Builder
	fmt.Fprintf(&b, "\nfinal standings, match %s (%s)\n", result.MatchID, result.Mode)
	for i, entry := range result.Podium {
		fmt.Fprintf(&b, "  %d. %-20s %d\n", i+1, entry.Name, entry.Score)
	}
	if len(result.TeamScores) > 0 {
		b.WriteString("  teams:")
		for team, score := range result.TeamScores {
			fmt.Fprintf(&b, " %s=%d", team, score)
		}
		b.WriteByte('\n')
	}
	for _, p := range result.Players {
		fmt.Fprintf(&b, "  %-20s rank=%-2d k/d/a=%d/%d/%d score=%d\n",
			p.Name, p.Rank, p.Kills, p.Deaths, p.Assists, p.Score)
	}
	fmt.Fprint(os.Stdout, b.String())
}
