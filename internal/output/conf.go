package output

// Default tuning, applied by the Reset methods.
const (
	DefaultSolenoidMinMA  = 250
	DefaultSolenoidMaxMA  = 1000
	DefaultSolenoidMinPPT = 0
	DefaultSolenoidMaxPPT = 1000

	DefaultSolenoidCurrentP = 20
	DefaultSolenoidCurrentI = 1

	DefaultAcc = 50
	DefaultDec = 50

	DefaultToggleThreshold = 500
	DefaultPreDelayMs      = 0
	DefaultToggleLimitMs   = 0

	DefaultRefRelPosMin = 550
	DefaultRefRelPosMax = 900
	DefaultRefRelNegMin = 450
	DefaultRefRelNegMax = 100

	DefaultRefAbsPosMin = 2750
	DefaultRefAbsPosMax = 4500
	DefaultRefAbsNegMin = 2250
	DefaultRefAbsNegMax = 500
)

// SolenoidOutputConf holds the per-mode bounds and current loop gains of a
// solenoid. It lives in non-volatile storage owned by the application.
type SolenoidOutputConf struct {
	MinMA  int32 `json:"min_ma"`
	MaxMA  int32 `json:"max_ma"`
	MinPPT int32 `json:"min_ppt"`
	MaxPPT int32 `json:"max_ppt"`
	// CurrentP and CurrentI are the current loop gains in 1/256 units.
	CurrentP uint8 `json:"current_p"`
	CurrentI uint8 `json:"current_i"`
}

// Reset restores the defaults.
func (c *SolenoidOutputConf) Reset() {
	c.MinMA = DefaultSolenoidMinMA
	c.MaxMA = DefaultSolenoidMaxMA
	c.MinPPT = DefaultSolenoidMinPPT
	c.MaxPPT = DefaultSolenoidMaxPPT
	c.CurrentP = DefaultSolenoidCurrentP
	c.CurrentI = DefaultSolenoidCurrentI
}

// DualSolenoidOutputConf configures a bidirectional solenoid pair.
type DualSolenoidOutputConf struct {
	// Acc and Dec are 0..100 %.
	Acc int32 `json:"acc"`
	Dec int32 `json:"dec"`
	// Invert swaps the A/B wiring.
	Invert bool `json:"invert"`
	// Solenoid holds the A (positive) and B (negative) bounds.
	Solenoid [2]SolenoidOutputConf `json:"solenoid"`
}

// Reset restores the defaults.
func (c *DualSolenoidOutputConf) Reset() {
	c.Acc = DefaultAcc
	c.Dec = DefaultDec
	c.Invert = false
	c.Solenoid[0].Reset()
	c.Solenoid[1].Reset()
}

// PropMode selects how a PropOutput interprets its request.
type PropMode string

const (
	PropNormal  PropMode = "PROP_NORMAL"
	PropToggle  PropMode = "PROP_TOGGLE"
	OnOffNormal PropMode = "ONOFF_NORMAL"
	OnOffToggle PropMode = "ONOFF_TOGGLE"
)

// Toggle reports whether m latches on press.
func (m PropMode) Toggle() bool { return m == PropToggle || m == OnOffToggle }

// OnOff reports whether m skips proportional shaping.
func (m PropMode) OnOff() bool { return m == OnOffNormal || m == OnOffToggle }

// PropOutputConf configures a PropOutput.
type PropOutputConf struct {
	Mode PropMode `json:"mode"`
	Acc  int32    `json:"acc"`
	Dec  int32    `json:"dec"`
	// ToggleThreshold is the |request| that counts as a press, in ppt.
	ToggleThreshold int32 `json:"toggle_threshold"`
	// EnablePreDelayMs filters presses shorter than this.
	EnablePreDelayMs int32 `json:"enable_pre_delay_ms"`
	// ToggleLimitMsPos/Neg release a latched toggle after this long; zero keeps it latched.
	ToggleLimitMsPos int32 `json:"toggle_limit_ms_pos"`
	ToggleLimitMsNeg int32 `json:"toggle_limit_ms_neg"`
}

// Reset restores the defaults.
func (c *PropOutputConf) Reset() {
	c.Mode = PropNormal
	c.Acc = DefaultAcc
	c.Dec = DefaultDec
	c.ToggleThreshold = DefaultToggleThreshold
	c.EnablePreDelayMs = DefaultPreDelayMs
	c.ToggleLimitMsPos = DefaultToggleLimitMs
	c.ToggleLimitMsNeg = DefaultToggleLimitMs
}

// RefMode selects the RefOutput limit frame and shaping.
type RefMode string

const (
	RefRel      RefMode = "REL"
	RefAbs      RefMode = "ABS"
	RefOnOffRel RefMode = "ONOFF_REL"
	RefOnOffAbs RefMode = "ONOFF_ABS"
)

// OnOff reports whether m skips proportional shaping.
func (m RefMode) OnOff() bool { return m == RefOnOffRel || m == RefOnOffAbs }

// Absolute reports whether m uses millivolt limits.
func (m RefMode) Absolute() bool { return m == RefAbs || m == RefOnOffAbs }

// RefLimitConf holds the output window for each direction. Units are ppt
// of supply for the relative frame and mV for the absolute frame.
type RefLimitConf struct {
	PosMin int32 `json:"posmin"`
	PosMax int32 `json:"posmax"`
	NegMin int32 `json:"negmin"`
	NegMax int32 `json:"negmax"`
}

// RefOutputConf configures a RefOutput.
type RefOutputConf struct {
	Mode RefMode      `json:"mode"`
	Acc  int32        `json:"acc"`
	Dec  int32        `json:"dec"`
	Rel  RefLimitConf `json:"rel"`
	Abs  RefLimitConf `json:"abs"`
}

// Reset restores the defaults.
func (c *RefOutputConf) Reset() {
	c.Mode = RefRel
	c.Acc = DefaultAcc
	c.Dec = DefaultDec
	c.Rel = RefLimitConf{
		PosMin: DefaultRefRelPosMin,
		PosMax: DefaultRefRelPosMax,
		NegMin: DefaultRefRelNegMin,
		NegMax: DefaultRefRelNegMax,
	}
	c.Abs = RefLimitConf{
		PosMin: DefaultRefAbsPosMin,
		PosMax: DefaultRefAbsPosMax,
		NegMin: DefaultRefAbsNegMin,
		NegMax: DefaultRefAbsNegMax,
	}
}
