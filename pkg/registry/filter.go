package registry

import "strings"

// Info flag bits servers report and clients filter on. Linux overlapping
// NotPassworded is historical; both meanings shipped.
const (
	InfoDedicated     uint8 = 0x1
	InfoNotPassworded uint8 = 0x2
	InfoLinux         uint8 = 0x2
)

// Filter is a parsed list-request query. Zero values mean "don't care" for
// every numeric field; an empty or "any" game/mission type matches all.
type Filter struct {
	GameType    string
	MissionType string
	MinPlayers  uint8
	MaxPlayers  uint8
	Regions     uint32
	Version     uint32
	Flags       uint8
	MaxBots     uint8
	MinCPUSpeed uint16
	Buddies     []uint32
}

func isAny(s string) bool {
	return s == "" || strings.EqualFold(s, "any")
}

// match reports whether info passes the filter. gameRef and missionRef are
// resolved pool entries (nil when the filter is a wildcard); callers that
// fail to resolve a non-wildcard type skip calling match entirely since no
// server can pass.
func (f *Filter) match(info *ServerInfo, gameRef, missionRef *PoolString) bool {
	if gameRef != nil && info.GameType != gameRef {
		return false
	}
	if missionRef != nil && info.MissionType != missionRef {
		return false
	}
	if f.MinPlayers != 0 && info.PlayerCount < f.MinPlayers {
		return false
	}
	if f.MaxPlayers != 0 && info.PlayerCount > f.MaxPlayers {
		return false
	}
	if f.Regions != 0 && info.Regions&f.Regions == 0 {
		return false
	}
	if f.Version != 0 && info.Version < f.Version {
		return false
	}
	if f.Flags != 0 && info.InfoFlags&f.Flags == 0 {
		return false
	}
	if f.MaxBots != 0 && info.NumBots > f.MaxBots {
		return false
	}
	if f.MinCPUSpeed != 0 && info.CPUSpeed < f.MinCPUSpeed {
		return false
	}
	// a buddy query only matches servers one of the buddies is actually on;
	// a server reporting no player GUIDs cannot host a buddy
	if len(f.Buddies) > 0 {
		found := false
		for _, guid := range info.PlayerGUIDs {
			for _, b := range f.Buddies {
				if guid == b {
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
