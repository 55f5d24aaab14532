package params

import "fmt"

// Profile is a named frame-parameter preset at a fixed index. Users
// configure a handful of profiles per hardware source (e.g. a fast one
// for focusing, a slow high-quality one for records).
type Profile struct {
	Index      int
	Name       string
	Parameters FrameParameters
}

// ProfileSet holds the profiles of one hardware source, addressed by
// index. It is a plain value container; the acquisition controller
// guards concurrent access.
type ProfileSet struct {
	profiles []Profile
}

// NewProfileSet builds a set from the given profiles, assigning indexes
// in order.
func NewProfileSet(profiles ...Profile) *ProfileSet {
	ps := &ProfileSet{profiles: make([]Profile, len(profiles))}
	for i, p := range profiles {
		p.Index = i
		p.Parameters = p.Parameters.Clone()
		ps.profiles[i] = p
	}
	return ps
}

// Count returns the number of profiles.
func (ps *ProfileSet) Count() int {
	return len(ps.profiles)
}

// Get returns a copy of the profile at index.
func (ps *ProfileSet) Get(index int) (Profile, error) {
	if index < 0 || index >= len(ps.profiles) {
		return Profile{}, fmt.Errorf("profile index %d out of range [0, %d)", index, len(ps.profiles))
	}
	p := ps.profiles[index]
	p.Parameters = p.Parameters.Clone()
	return p, nil
}

// SetParameters replaces the stored parameters of the profile at index.
func (ps *ProfileSet) SetParameters(index int, fp FrameParameters) error {
	if index < 0 || index >= len(ps.profiles) {
		return fmt.Errorf("profile index %d out of range [0, %d)", index, len(ps.profiles))
	}
	ps.profiles[index].Parameters = fp.Clone()
	return nil
}
