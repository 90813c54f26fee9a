package config

// Campaign environments. Staging points at a pair of throwaway campaigns so
// the full flow can be exercised without touching live assignments.
const (
	EnvRegular = "regular"
	EnvStaging = "staging"
)

// Time-of-day slots an automation run can target.
const (
	TimePagi   = "pagi"
	TimeSiang  = "siang"
	TimeMalam  = "malam"
	TimeManual = "manual"
)

// ValidTimeOfDay reports whether s names a known run slot.
func ValidTimeOfDay(s string) bool {
	switch s {
	case TimePagi, TimeSiang, TimeMalam, TimeManual:
		return true
	}
	return false
}

// regularCampaigns is the production campaign set. All slots currently share
// one list; the split by slot is kept because the dashboard team adjusts them
// independently.
var regularCampaigns = []int64{
	281482, 250794, 250554, 250433, 250432, 247001, 246860,
	246815, 246551, 246550, 246549, 246548, 249397, 275170,
}

var stagingCampaigns = []int64{289626, 289627}

var campaignsByEnv = map[string]map[string][]int64{
	EnvRegular: {
		TimePagi:   regularCampaigns,
		TimeSiang:  regularCampaigns,
		TimeMalam:  regularCampaigns,
		TimeManual: regularCampaigns,
	},
	EnvStaging: {
		TimePagi:   stagingCampaigns,
		TimeSiang:  stagingCampaigns,
		TimeMalam:  stagingCampaigns,
		TimeManual: stagingCampaigns,
	},
}

// CampaignIDsFor returns the campaign set for one environment and slot.
// Unknown combinations yield nil, never an error.
func CampaignIDsFor(env, timeOfDay string) []int64 {
	slots, ok := campaignsByEnv[env]
	if !ok {
		return nil
	}
	ids, ok := slots[timeOfDay]
	if !ok {
		return nil
	}
	out := make([]int64, len(ids))
	copy(out, ids)
	return out
}

// allowedAdminNames is the closed set of assignable dashboard admins.
var allowedAdminNames = []string{
	"admin 1", "admin 2", "admin 3", "admin 4", "admin 5",
	"admin 6", "admin 7", "admin 8", "admin 09", "admin 10",
	"admin 91", "admin 92", "admin 914", "admin 915", "admin 916",
	"admin 917", "admin 918",
}

// AllowedAdminNames returns the admins that may appear in a cohort.
func AllowedAdminNames() []string {
	out := make([]string, len(allowedAdminNames))
	copy(out, allowedAdminNames)
	return out
}

// AdminAllowed reports whether name is an assignable admin.
func AdminAllowed(name string) bool {
	for _, n := range allowedAdminNames {
		if n == name {
			return true
		}
	}
	return false
}

// SpecialCampaign is diagnostic metadata about the most heavily restricted
// campaign in an environment. It is used for logging and the restrictions
// endpoint only; enforcement always goes through the rule engine.
type SpecialCampaign struct {
	ID             int64    `json:"id"`
	ExcludedAdmins []string `json:"excludedAdmins"`
}

var specialByEnv = map[string]SpecialCampaign{
	EnvRegular: {
		ID: 247001,
		ExcludedAdmins: []string{
			"admin 6", "admin 7", "admin 09", "admin 10", "admin 91",
			"admin 92", "admin 914", "admin 915", "admin 916", "admin 917", "admin 918",
		},
	},
	EnvStaging: {
		ID: 289627,
		ExcludedAdmins: []string{
			"admin 6", "admin 7", "admin 09", "admin 10", "admin 91",
			"admin 92", "admin 914", "admin 915", "admin 916", "admin 917", "admin 918",
		},
	},
}

// SpecialCampaignFor returns the special-campaign metadata for env.
func SpecialCampaignFor(env string) (SpecialCampaign, bool) {
	sc, ok := specialByEnv[env]
	return sc, ok
}
