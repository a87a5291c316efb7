package navigator

import (
	geo "github.com/kellydunn/golang-geo"

	"github.com/flightpath-dev/commander-core/internal/params"
	"github.com/flightpath-dev/commander-core/internal/vstatus"
)

// defaultAcceptanceRadiusM is used when a mission item carries no acceptance
// radius of its own.
const defaultAcceptanceRadiusM = 10.0

// Mission is the concrete MissionSource: an ordered list of position items
// advanced by acceptance radius, with an optional land-start index marking
// where the mission-defined landing sequence begins. It also supports the
// reversed traversal the MISSION_LANDING_REVERSED RTL sub-type flies.
//
// The mission plan itself arrives from outside (mission storage is out of
// scope); this type only executes whatever items it was handed.
type Mission struct {
	items          []vstatus.PositionSetpoint
	index          int
	reversed       bool
	reverseTarget  int
	finished       bool
	instanceCount  uint32
	landStartIndex int // -1 when the mission has no landing sequence
}

// NewMission returns an empty mission; Result().Valid stays false until
// SetItems installs a plan.
func NewMission() *Mission {
	return &Mission{landStartIndex: -1}
}

// SetItems replaces the mission plan and rewinds to item 0. landStartIndex
// < 0 or out of range means no landing sequence.
func (m *Mission) SetItems(items []vstatus.PositionSetpoint, landStartIndex int) {
	m.items = append(m.items[:0:0], items...)
	m.index = 0
	m.reversed = false
	m.finished = len(m.items) == 0
	if landStartIndex < 0 || landStartIndex >= len(m.items) {
		landStartIndex = -1
	}
	m.landStartIndex = landStartIndex
	m.instanceCount++
}

// Start positions the mission at index. It reports false for an out-of-range
// index, including index == seq_total — an empty remainder cannot begin a
// mission, so the caller denies the request.
func (m *Mission) Start(index int) bool {
	if index < 0 || index >= len(m.items) {
		return false
	}
	m.index = index
	m.reversed = false
	m.finished = false
	return true
}

// Reverse switches the mission into reversed traversal toward its landing
// sequence: items are flown in descending order from the current one,
// finishing at the land-start item. It reports false when no landing
// sequence exists or the landing lies ahead of (not behind) the current
// item, in which case the caller falls back to a direct RTL.
func (m *Mission) Reverse() bool {
	if m.landStartIndex < 0 || m.finished || m.landStartIndex > m.index {
		return false
	}
	m.reversed = true
	m.reverseTarget = m.landStartIndex
	return true
}

// Advance checks the vehicle position against the current item's acceptance
// radius and steps to the next item when reached. It reports whether the
// mission advanced (or finished) this call.
func (m *Mission) Advance(lat, lon float64) bool {
	if m.finished || len(m.items) == 0 {
		return false
	}
	cur := m.items[m.index]
	accept := cur.AcceptanceRadius
	if accept <= 0 {
		accept = defaultAcceptanceRadiusM
	}
	distM := geo.NewPoint(lat, lon).GreatCircleDistance(geo.NewPoint(cur.Latitude, cur.Longitude)) * 1000.0
	if distM > accept {
		return false
	}

	if m.reversed {
		if m.index <= m.reverseTarget {
			m.finished = true
		} else {
			m.index--
		}
	} else {
		if m.index >= len(m.items)-1 {
			m.finished = true
		} else {
			m.index++
		}
	}
	return true
}

// CurrentItem implements MissionSource.
func (m *Mission) CurrentItem() (vstatus.PositionSetpoint, bool) {
	if m.finished || len(m.items) == 0 {
		return vstatus.PositionSetpoint{}, false
	}
	item := m.items[m.index]
	item.Valid = true
	return item, true
}

// NextItem implements MissionSource, respecting the traversal direction.
func (m *Mission) NextItem() (vstatus.PositionSetpoint, bool) {
	if m.finished || len(m.items) == 0 {
		return vstatus.PositionSetpoint{}, false
	}
	next := m.index + 1
	if m.reversed {
		next = m.index - 1
		if next < m.reverseTarget {
			return vstatus.PositionSetpoint{}, false
		}
	} else if next >= len(m.items) {
		return vstatus.PositionSetpoint{}, false
	}
	item := m.items[next]
	item.Valid = true
	return item, true
}

// LandStartAvailable implements MissionSource.
func (m *Mission) LandStartAvailable() bool {
	return m.landStartIndex >= 0
}

// LandStartItem implements MissionSource.
func (m *Mission) LandStartItem() (vstatus.PositionSetpoint, bool) {
	if m.landStartIndex < 0 {
		return vstatus.PositionSetpoint{}, false
	}
	item := m.items[m.landStartIndex]
	item.Valid = true
	return item, true
}

// SeqTotal returns the number of items in the installed plan.
func (m *Mission) SeqTotal() int {
	return len(m.items)
}

// Result snapshots the mission state in the published record shape.
func (m *Mission) Result() vstatus.MissionResult {
	r := vstatus.MissionResult{
		Valid:         len(m.items) > 0,
		Finished:      m.finished,
		InstanceCount: m.instanceCount,
		SeqTotal:      int32(len(m.items)),
	}
	if m.landStartIndex >= 0 {
		r.LandStartAvailable = true
		r.LandStartIndex = int32(m.landStartIndex)
	}
	return r
}

// ResolveRTLTarget picks the destination an RTL engagement flies to, after
// degrading the configured sub-type through SelectRTLType:
//
//   - DIRECT: home, at the configured return altitude above home.
//   - CLOSEST: the nearest of home and the provided safe points.
//   - MISSION_LANDING / MISSION_LANDING_REVERSED: the mission's land-start
//     item (the reversed variant additionally asks the caller to flip the
//     mission into reversed traversal via Mission.Reverse).
//
// The effective sub-type is returned alongside the target so the caller can
// trigger the reversed-traversal side effect only when it actually applies.
func ResolveRTLTarget(configured params.RTLType, home vstatus.HomePosition, returnAltM float64, curLat, curLon float64, safePoints []vstatus.PositionSetpoint, mission *Mission) (RTLTarget, params.RTLType) {
	landAvailable := mission != nil && mission.LandStartAvailable()
	effective := SelectRTLType(configured, landAvailable)

	switch effective {
	case params.RTLClosest:
		best := RTLTarget{Latitude: home.Latitude, Longitude: home.Longitude, Altitude: returnAltM}
		cur := geo.NewPoint(curLat, curLon)
		bestDist := cur.GreatCircleDistance(geo.NewPoint(home.Latitude, home.Longitude))
		for _, sp := range safePoints {
			d := cur.GreatCircleDistance(geo.NewPoint(sp.Latitude, sp.Longitude))
			if d < bestDist {
				bestDist = d
				best = RTLTarget{Latitude: sp.Latitude, Longitude: sp.Longitude, Altitude: returnAltM}
			}
		}
		return best, effective

	case params.RTLMissionLanding, params.RTLMissionLandingReversed:
		if item, ok := mission.LandStartItem(); ok {
			return RTLTarget{Latitude: item.Latitude, Longitude: item.Longitude, Altitude: item.Altitude}, effective
		}
		// SelectRTLType already degraded the no-landing case; this is only
		// reachable if the plan changed between the two calls.
		fallthrough

	default:
		return RTLTarget{Latitude: home.Latitude, Longitude: home.Longitude, Altitude: returnAltM}, params.RTLDirect
	}
}
