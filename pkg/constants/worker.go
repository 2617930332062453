package constants

// Skill is a work category a worker can be matched for
type Skill string

const (
	SkillGraphics Skill = "graphics"
	SkillWeb      Skill = "web"
	SkillPrinting Skill = "printing"
)

func (s Skill) String() string {
	return string(s)
}

// Valid reports whether s is a known skill
func (s Skill) Valid() bool {
	switch s {
	case SkillGraphics, SkillWeb, SkillPrinting:
		return true
	}
	return false
}

// PriceTier worker price tier
type PriceTier string

const (
	PriceTierBasic    PriceTier = "basic"
	PriceTierStandard PriceTier = "standard"
	PriceTierPremium  PriceTier = "premium"
)

func (t PriceTier) String() string {
	return string(t)
}

// Valid reports whether t is a known tier
func (t PriceTier) Valid() bool {
	switch t {
	case PriceTierBasic, PriceTierStandard, PriceTierPremium:
		return true
	}
	return false
}

// Actor roles carried by authenticated requests
const (
	RoleClient = "client"
	RoleWorker = "worker"
	RoleAdmin  = "admin"
)
