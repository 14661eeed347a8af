package game

// WeaponSpec is the static stat block for one weapon class. Specs are
// plain data; live firing state is WeaponState.
type WeaponSpec struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Damage     float64  `json:"damage"`     // base damage per hit
	DamageCap  float64  `json:"damageCap"`  // absolute ceiling after speed scaling
	FireRate   float64  `json:"fireRate"`   // rounds per second
	MagSize    int      `json:"magSize"`
	ReloadTime float64  `json:"reloadTime"` // seconds
	FireModes  []string `json:"fireModes"`

	// Speed-scaling block: damage multiplier rises with movement
	// speed between MinSpeed and MaxSpeed, holds for PeakGrace after
	// each peak, then decays at DecayRate units per second.
	MaxMultiplier float64 `json:"maxMultiplier"`
	MinSpeed      float64 `json:"minSpeed"` // u/s, target multiplier stays 1 below this
	MaxSpeed      float64 `json:"maxSpeed"` // u/s, target multiplier caps here
	PeakGrace     float64 `json:"peakGrace"`
	DecayRate     float64 `json:"decayRate"`
}

// DefaultWeaponID is handed out when a loadout names an unknown weapon.
const DefaultWeaponID = "rifle"

// Weapons is the map of all available weapons
var Weapons = map[string]WeaponSpec{
	"rifle": {
		ID:            "rifle",
		Name:          "Assault Rifle",
		Damage:        20,
		DamageCap:     45, // binds before 20 * 2.5 at full sprint
		FireRate:      8,
		MagSize:       30,
		ReloadTime:    1.8,
		FireModes:     []string{"auto", "single"},
		MaxMultiplier: 2.5,
		MinSpeed:      15,
		MaxSpeed:      30,
		PeakGrace:     1.25,
		DecayRate:     1.5,
	},
	"smg": {
		ID:            "smg",
		Name:          "SMG",
		Damage:        12,
		DamageCap:     30,
		FireRate:      12,
		MagSize:       36,
		ReloadTime:    1.5,
		FireModes:     []string{"auto"},
		MaxMultiplier: 3.0,
		MinSpeed:      12,
		MaxSpeed:      28,
		PeakGrace:     1.0,
		DecayRate:     2.0,
	},
	"shotgun": {
		ID:            "shotgun",
		Name:          "Shotgun",
		Damage:        60,
		DamageCap:     90,
		FireRate:      1.4,
		MagSize:       6,
		ReloadTime:    2.6,
		FireModes:     []string{"single"},
		MaxMultiplier: 1.8,
		MinSpeed:      10,
		MaxSpeed:      25,
		PeakGrace:     1.25,
		DecayRate:     1.2,
	},
	"dmr": {
		ID:            "dmr",
		Name:          "Marksman Rifle",
		Damage:        45,
		DamageCap:     80,
		FireRate:      3.5,
		MagSize:       12,
		ReloadTime:    2.2,
		FireModes:     []string{"single"},
		MaxMultiplier: 1.6,
		MinSpeed:      18,
		MaxSpeed:      32,
		PeakGrace:     0.9,
		DecayRate:     1.0,
	},
	"pistol": {
		ID:            "pistol",
		Name:          "Sidearm",
		Damage:        18,
		DamageCap:     36,
		FireRate:      5,
		MagSize:       15,
		ReloadTime:    1.4,
		FireModes:     []string{"single", "burst"},
		MaxMultiplier: 2.0,
		MinSpeed:      14,
		MaxSpeed:      26,
		PeakGrace:     1.1,
		DecayRate:     1.8,
	},
}

// GetWeaponSpec returns a weapon by ID, defaults to the rifle so a bad
// loadout request never breaks a session.
func GetWeaponSpec(id string) WeaponSpec {
	if w, ok := Weapons[id]; ok {
		return w
	}
	return Weapons[DefaultWeaponID]
}

// GetAllWeaponSpecs returns all weapons as a slice
func GetAllWeaponSpecs() []WeaponSpec {
	weapons := make([]WeaponSpec, 0, len(Weapons))
	for _, w := range Weapons {
		weapons = append(weapons, w)
	}
	return weapons
}
