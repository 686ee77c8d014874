package gates

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/config"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/domain"
)

// Checks holds the five named validation checks in their fixed evaluation
// order. A short-circuited run leaves every check after the first failure at
// its zero value.
type Checks struct {
	Cooldown    bool `json:"cooldown"`
	MarketHours bool `json:"market_hours"`
	MTF         bool `json:"mtf"`
	Confluence  bool `json:"confluence"`
	TimeFilters bool `json:"time_filters"`
}

// Result is the per-signal validation outcome
type Result struct {
	Valid           bool                   `json:"valid"`
	Checks          Checks                 `json:"checks"`
	RejectionReason string                 `json:"rejection_reason,omitempty"` // first failed check's reason
	Details         map[string]interface{} `json:"details"`                    // per-check diagnostic data
}

// Rejection reasons, one per check
const (
	ReasonCooldown     = "cooldown active for symbol/direction"
	ReasonMarketHours  = "outside market hours"
	ReasonMTF          = "multi-timeframe alignment not confirmed"
	ReasonConfluence   = "confluence score below threshold"
	ReasonSignalTooOld = "signal age exceeds maximum"
)

// Validator runs the ordered acceptance checks. The cooldown tracker is
// shared mutable state across concurrent signals; its check-and-record is
// atomic under one lock.
type Validator struct {
	cfg *config.ValidationConfig

	mu         sync.Mutex
	lastSignal map[string]time.Time // "symbol|direction" -> last accepted cooldown mark

	now func() time.Time
}

// NewValidator creates a signal validator with the given thresholds
func NewValidator(cfg *config.ValidationConfig) *Validator {
	return &Validator{
		cfg:        cfg,
		lastSignal: make(map[string]time.Time),
		now:        time.Now,
	}
}

// Validate evaluates the checks in order cooldown -> marketHours -> mtf ->
// confluence -> timeFilters, returning on the first failure with that check's
// reason and all subsequent checks left false.
func (v *Validator) Validate(sig *domain.Signal) *Result {
	result := &Result{Details: make(map[string]interface{})}

	if !v.checkCooldown(sig, result) {
		return v.rejected(sig, result, ReasonCooldown)
	}
	result.Checks.Cooldown = true

	if !v.checkMarketHours(sig, result) {
		return v.rejected(sig, result, ReasonMarketHours)
	}
	result.Checks.MarketHours = true

	if !v.checkMTF(sig, result) {
		return v.rejected(sig, result, ReasonMTF)
	}
	result.Checks.MTF = true

	if !v.checkConfluence(sig, result) {
		return v.rejected(sig, result, ReasonConfluence)
	}
	result.Checks.Confluence = true

	if !v.checkTimeFilters(sig, result) {
		return v.rejected(sig, result, ReasonSignalTooOld)
	}
	result.Checks.TimeFilters = true

	result.Valid = true
	return result
}

func (v *Validator) rejected(sig *domain.Signal, result *Result, reason string) *Result {
	result.Valid = false
	result.RejectionReason = reason
	log.Debug().
		Str("tracking_id", sig.TrackingID).
		Str("symbol", sig.Symbol).
		Str("reason", reason).
		Msg("signal rejected by validation")
	return result
}

// checkCooldown rejects a signal landing within the cooldown window of the
// previous one for the same (symbol, direction), and marks the new timestamp
// atomically on pass.
func (v *Validator) checkCooldown(sig *domain.Signal, result *Result) bool {
	key := sig.Symbol + "|" + string(sig.Direction)
	now := v.now()

	v.mu.Lock()
	defer v.mu.Unlock()

	if last, ok := v.lastSignal[key]; ok {
		elapsed := now.Sub(last)
		if elapsed < v.cfg.Cooldown() {
			result.Details["cooldown"] = map[string]interface{}{
				"elapsed_seconds":  elapsed.Seconds(),
				"required_seconds": v.cfg.Cooldown().Seconds(),
			}
			return false
		}
	}
	v.lastSignal[key] = now
	result.Details["cooldown"] = map[string]interface{}{"elapsed_seconds": nil}
	return true
}

// checkMarketHours projects the signal timestamp into the exchange time zone
// and compares against the configured open/close window
func (v *Validator) checkMarketHours(sig *domain.Signal, result *Result) bool {
	open, close, loc := v.cfg.MarketWindow()
	local := sig.Timestamp.In(loc)
	minutes := config.ClockMinutes(local.Hour()*60 + local.Minute())

	result.Details["market_hours"] = map[string]interface{}{
		"local_time": local.Format("15:04"),
		"open":       v.cfg.MarketOpen,
		"close":      v.cfg.MarketClose,
	}
	return minutes >= open && minutes < close
}

// checkMTF consults the upstream-computed alignment flag when alignment is
// required; a missing flag cannot confirm alignment and fails the check
func (v *Validator) checkMTF(sig *domain.Signal, result *Result) bool {
	if !v.cfg.RequireMTFAlignment {
		result.Details["mtf"] = map[string]interface{}{"required": false}
		return true
	}
	aligned := sig.Metadata.MTFAligned
	result.Details["mtf"] = map[string]interface{}{
		"required": true,
		"aligned":  aligned,
	}
	return aligned != nil && *aligned
}

// checkConfluence compares the upstream confluence score against the
// configured minimum. A signal carrying no score passes; absence of
// confluence data is degradable, not a rejection.
func (v *Validator) checkConfluence(sig *domain.Signal, result *Result) bool {
	score := sig.Metadata.ConfluenceScore
	if score == nil {
		result.Details["confluence"] = map[string]interface{}{"score": nil, "note": "no confluence data"}
		return true
	}
	result.Details["confluence"] = map[string]interface{}{
		"score":     *score,
		"threshold": v.cfg.MinConfluenceScore,
	}
	return *score >= v.cfg.MinConfluenceScore
}

// checkTimeFilters rejects signals older than the configured maximum age
func (v *Validator) checkTimeFilters(sig *domain.Signal, result *Result) bool {
	age := sig.Age(v.now())
	result.Details["time_filters"] = map[string]interface{}{
		"age_seconds": age.Seconds(),
		"max_seconds": v.cfg.MaxSignalAge().Seconds(),
	}
	return age <= v.cfg.MaxSignalAge()
}

// String summarizes the result for logs
func (r *Result) String() string {
	if r.Valid {
		return "valid"
	}
	return fmt.Sprintf("rejected: %s", r.RejectionReason)
}
