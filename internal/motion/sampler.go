package motion

import "fmt"

// FailurePolicy decides what the sampler exposes for a cycle whose read failed.
type FailurePolicy int

const (
	// RetainLast keeps the previous cycle's values.
	RetainLast FailurePolicy = iota
	// ZeroFill replaces the sample with zeros (magnitude 0).
	ZeroFill
)

// ParseFailurePolicy maps the config names "retain" and "zero".
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "retain":
		return RetainLast, nil
	case "zero":
		return ZeroFill, nil
	}
	return RetainLast, fmt.Errorf("unknown sample failure policy %q", s)
}

func (p FailurePolicy) String() string {
	if p == ZeroFill {
		return "zero"
	}
	return "retain"
}

// Sampler owns the current Sample. It is not safe for concurrent use;
// only the control loop touches it.
type Sampler struct {
	reader  AccelReader
	policy  FailurePolicy
	current Sample
	lastErr error
}

func NewSampler(reader AccelReader, policy FailurePolicy) *Sampler {
	return &Sampler{reader: reader, policy: policy}
}

// Update reads the sensor once and returns the sample for this cycle.
// ok is false when the read failed and the policy decided the value.
func (s *Sampler) Update() (Sample, bool) {
	x, y, z, err := s.reader.ReadAccel()
	s.lastErr = err
	if err != nil {
		if s.policy == ZeroFill {
			s.current = Sample{}
		}
		return s.current, false
	}
	s.current = NewSample(x, y, z)
	return s.current, true
}

// Current returns the last sample without reading.
func (s *Sampler) Current() Sample {
	return s.current
}

// Err returns the error of the last Update, or nil.
func (s *Sampler) Err() error {
	return s.lastErr
}
