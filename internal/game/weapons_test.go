package game

import "testing"

func TestGetWeaponSpec(t *testing.T) {
	tests := []struct {
		id   string
		name string
	}{
		{"rifle", "Assault Rifle"},
		{"smg", "SMG"},
		{"shotgun", "Shotgun"},
		{"dmr", "Marksman Rifle"},
		{"pistol", "Sidearm"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			spec := GetWeaponSpec(tt.id)
			if spec.Name != tt.name {
				t.Errorf("name = %q, want %q", spec.Name, tt.name)
			}
		})
	}
}

func TestGetWeaponSpecUnknownFallsBack(t *testing.T) {
	for _, id := range []string{"railgun", ""} {
		spec := GetWeaponSpec(id)
		if spec.ID != DefaultWeaponID {
			t.Errorf("GetWeaponSpec(%q).ID = %q, want %q", id, spec.ID, DefaultWeaponID)
		}
	}
}

func TestWeaponCatalogWellFormed(t *testing.T) {
	if len(Weapons) == 0 {
		t.Fatal("weapon catalog is empty")
	}

	for id, w := range Weapons {
		if w.ID != id {
			t.Errorf("catalog key %q holds spec with ID %q", id, w.ID)
		}
		if w.Name == "" {
			t.Errorf("weapon %s has no display name", id)
		}
		if w.Damage <= 0 {
			t.Errorf("weapon %s has non-positive damage", id)
		}
		if w.DamageCap < w.Damage {
			t.Errorf("weapon %s cap %.0f is below base damage %.0f", id, w.DamageCap, w.Damage)
		}
		// no weapon may one-shot a full-health player
		if w.DamageCap > MaxHealth {
			t.Errorf("weapon %s cap %.0f exceeds max health", id, w.DamageCap)
		}
		if w.FireRate <= 0 || w.FireRate > 20 {
			t.Errorf("weapon %s fire rate %.1f out of range", id, w.FireRate)
		}
		if w.MagSize <= 0 {
			t.Errorf("weapon %s has no magazine", id)
		}
		if w.ReloadTime <= 0 || w.ReloadTime > 4 {
			t.Errorf("weapon %s reload time %.1f out of range", id, w.ReloadTime)
		}
		if len(w.FireModes) == 0 {
			t.Errorf("weapon %s has no fire modes", id)
		}
		for _, m := range w.FireModes {
			switch m {
			case "auto", "single", "burst":
			default:
				t.Errorf("weapon %s has unknown fire mode %q", id, m)
			}
		}
	}
}

func TestWeaponSpeedScalingEnvelope(t *testing.T) {
	for id, w := range Weapons {
		if w.MaxMultiplier < 1 {
			t.Errorf("weapon %s max multiplier %.2f below 1", id, w.MaxMultiplier)
		}
		if w.MinSpeed <= 0 || w.MaxSpeed <= w.MinSpeed {
			t.Errorf("weapon %s speed band [%.0f, %.0f] is degenerate", id, w.MinSpeed, w.MaxSpeed)
		}
		if w.PeakGrace <= 0 {
			t.Errorf("weapon %s has no grace window", id)
		}
		if w.DecayRate <= 0 {
			t.Errorf("weapon %s multiplier never decays", id)
		}
	}
}

func TestWeaponDamageNumbers(t *testing.T) {
	tests := []struct {
		id     string
		damage float64
		cap    float64
	}{
		{"rifle", 20, 45},
		{"smg", 12, 30},
		{"shotgun", 60, 90},
		{"dmr", 45, 80},
		{"pistol", 18, 36},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			w := GetWeaponSpec(tt.id)
			if w.Damage != tt.damage {
				t.Errorf("damage = %.0f, want %.0f", w.Damage, tt.damage)
			}
			if w.DamageCap != tt.cap {
				t.Errorf("cap = %.0f, want %.0f", w.DamageCap, tt.cap)
			}
		})
	}
}

func TestDefaultLoadoutResolves(t *testing.T) {
	if _, ok := Weapons[DefaultWeaponID]; !ok {
		t.Fatalf("default weapon %q missing from catalog", DefaultWeaponID)
	}
	for _, id := range defaultLoadout {
		if _, ok := Weapons[id]; !ok {
			t.Errorf("default loadout names unknown weapon %q", id)
		}
	}
}

func TestGetAllWeaponSpecs(t *testing.T) {
	specs := GetAllWeaponSpecs()
	if len(specs) != len(Weapons) {
		t.Fatalf("got %d specs, catalog holds %d", len(specs), len(Weapons))
	}
	seen := make(map[string]bool, len(specs))
	for _, w := range specs {
		seen[w.ID] = true
	}
	if !seen[DefaultWeaponID] {
		t.Errorf("slice is missing the default weapon %q", DefaultWeaponID)
	}
}
