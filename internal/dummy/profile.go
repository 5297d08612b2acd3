package dummy

import (
	"math/rand"
	"time"

	"github.com/pkg/errors"
)

// Profile shapes the simulated confirmation latency and failure rate.
type Profile string

const (
	ProfileNone   Profile = "none"
	ProfileFast   Profile = "fast"
	ProfileMedium Profile = "medium"
	ProfileSlow   Profile = "slow"
	ProfileSpike  Profile = "spike"
	ProfileError  Profile = "error"
)

// Profiles lists every profile in display order.
func Profiles() []Profile {
	return []Profile{ProfileNone, ProfileFast, ProfileMedium, ProfileSlow, ProfileSpike, ProfileError}
}

// ParseProfile maps a flag value to a Profile.
func ParseProfile(s string) (Profile, error) {
	for _, p := range Profiles() {
		if string(p) == s {
			return p, nil
		}
	}
	return "", errors.Errorf("unknown latency profile %q", s)
}

func (p Profile) Describe() string {
	switch p {
	case ProfileNone:
		return "no delay, never fails"
	case ProfileFast:
		return "10-50ms per call"
	case ProfileMedium:
		return "100-300ms per call"
	case ProfileSlow:
		return "1-2s per call, good for watching the phases"
	case ProfileSpike:
		return "20ms, 5% of calls take 2s (bad p99, fine p50)"
	case ProfileError:
		return "20ms, 20% of transactions revert, 20% rejected"
	}
	return ""
}

func (p Profile) delay(rng *rand.Rand) time.Duration {
	switch p {
	case ProfileFast:
		return time.Duration(rng.Intn(40)+10) * time.Millisecond
	case ProfileMedium:
		return time.Duration(rng.Intn(200)+100) * time.Millisecond
	case ProfileSlow:
		return time.Duration(rng.Intn(1000)+1000) * time.Millisecond
	case ProfileSpike:
		if rng.Float32() < 0.05 {
			return 2 * time.Second
		}
		return 20 * time.Millisecond
	case ProfileError:
		return 20 * time.Millisecond
	}
	return 0
}

type fault int

const (
	faultNone fault = iota
	faultRejected
	faultReverted
)

func (p Profile) fault(rng *rand.Rand) fault {
	if p != ProfileError {
		return faultNone
	}
	switch r := rng.Float32(); {
	case r < 0.2:
		return faultRejected
	case r < 0.4:
		return faultReverted
	}
	return faultNone
}
