// Package suppressor rate-limits repeated stage diagnostics from the
// same (source, category) pair so a script that throws on every line
// of a bad file doesn't flood stderr (spec.md §7's "capped by stats
// rollup").
//
// Grounded on jail/jail.go's tiered escalating-cooldown shape: a
// repeat offender moves to a longer cooldown tier each time it
// reoffends while still under cooldown, and the cooldown lapses back
// to eligible once its tier's duration elapses. CIDR subrange
// matching (`isSubRange`/`SubRangesInJail`/`ParentRangeInJail`) has no
// analogue for an exact (source, category) key and is dropped; jail's
// disk persistence (`jail/io.go`) is dropped too since the suppressor
// only needs to live as long as one run.
package suppressor

import "time"

// Tier is one escalation step, analogous to jail.Cell.
type Tier struct {
	ID          int
	Description string
	CooldownFor time.Duration
	Offenders   []Offender
}

// Offender is one (source, category) pair currently under cooldown,
// analogous to jail.Prisoner.
type Offender struct {
	Key           string
	CooldownStart time.Time
	Active        bool
}

// Suppressor tracks diagnostic keys across escalating cooldown tiers.
type Suppressor struct {
	Tiers   []Tier
	AllKeys []string
}

func NewTier(id int, description string, cooldown time.Duration) Tier {
	return Tier{ID: id, Description: description, CooldownFor: cooldown, Offenders: []Offender{}}
}

// New builds a suppressor with five escalating tiers, from a brief
// cooldown for a one-off diagnostic up to a long one for a source that
// keeps reoffending.
func New() *Suppressor {
	return &Suppressor{
		Tiers: []Tier{
			NewTier(1, "first offense", 10*time.Second),
			NewTier(2, "repeat offense", 1*time.Minute),
			NewTier(3, "persistent offense", 10*time.Minute),
			NewTier(4, "chronic offense", time.Hour),
			NewTier(5, "saturated source", 6*time.Hour),
		},
		AllKeys: []string{},
	}
}

func cooldownOver(start time.Time, cooldown time.Duration) bool {
	return time.Since(start) > cooldown
}

func (s *Suppressor) find(key string) (found bool, tierIdx, offenderIdx int) {
	for tId, tier := range s.Tiers {
		for oId, off := range tier.Offenders {
			if off.Key == key {
				return true, tId, oId
			}
		}
	}
	return false, -1, -1
}

func (s *Suppressor) throwIntoTier(tierIdx int, off Offender) {
	if tierIdx < 0 || tierIdx >= len(s.Tiers) {
		return
	}
	off.CooldownStart = time.Now()
	off.Active = true
	s.Tiers[tierIdx].Offenders = append(s.Tiers[tierIdx].Offenders, off)
}

func (s *Suppressor) escalate(tierIdx, offenderIdx int) {
	s.Tiers[tierIdx].Offenders[offenderIdx].CooldownStart = time.Now()
	s.Tiers[tierIdx].Offenders[offenderIdx].Active = true

	if tierIdx < len(s.Tiers)-1 {
		next := s.Tiers[tierIdx].Offenders[offenderIdx]
		s.Tiers[tierIdx+1].Offenders = append(s.Tiers[tierIdx+1].Offenders, next)
		s.Tiers[tierIdx].Offenders = append(
			s.Tiers[tierIdx].Offenders[:offenderIdx],
			s.Tiers[tierIdx].Offenders[offenderIdx+1:]...,
		)
	}
}

func (s *Suppressor) updateActiveStatus() {
	for i := range s.Tiers {
		for k := range s.Tiers[i].Offenders {
			if cooldownOver(s.Tiers[i].Offenders[k].CooldownStart, s.Tiers[i].CooldownFor) {
				s.Tiers[i].Offenders[k].Active = false
			}
		}
	}
}

// Should reports whether a diagnostic for key should be suppressed
// right now. It records the occurrence as a side effect: a key seen
// for the first time (or whose prior cooldown has lapsed) is allowed
// through and starts (or restarts, one tier up) its cooldown; a key
// still under cooldown is suppressed without moving tiers again.
func (s *Suppressor) Should(key string) (suppress bool) {
	s.updateActiveStatus()

	if found, tierIdx, offenderIdx := s.find(key); found {
		if s.Tiers[tierIdx].Offenders[offenderIdx].Active {
			return true
		}
		s.escalate(tierIdx, offenderIdx)
		return false
	}

	s.throwIntoTier(0, Offender{Key: key})
	s.AllKeys = append(s.AllKeys, key)
	return false
}

// Active lists keys currently under an active cooldown.
func (s *Suppressor) Active() []string {
	keys := []string{}
	for _, tier := range s.Tiers {
		for _, off := range tier.Offenders {
			if off.Active {
				keys = append(keys, off.Key)
			}
		}
	}
	return keys
}
