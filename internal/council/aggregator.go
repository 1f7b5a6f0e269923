package council

import (
	"math"
	"sort"
	"time"

	"pantheon/internal/logger"
	"pantheon/internal/score"
)

// Config carries the aggregation thresholds. All of it comes from the config
// file; nothing here is caller-specific.
type Config struct {
	// MinQuorum is the minimum number of voting modules required for a
	// non-neutral decision.
	MinQuorum int
	// MaxScoreAge excludes stale scores from the round entirely.
	MaxScoreAge time.Duration

	// Action thresholds on netSupport (-1..+1).
	StrongBuy  float64
	Buy        float64
	Sell       float64
	StrongSell float64

	// Regime classification thresholds on the regime module's 0..100 score.
	TrendAbove   float64
	RiskOffBelow float64
}

func DefaultConfig() Config {
	return Config{
		MinQuorum:    3,
		MaxScoreAge:  30 * time.Minute,
		StrongBuy:    0.50,
		Buy:          0.15,
		Sell:         -0.15,
		StrongSell:   -0.50,
		TrendAbove:   65,
		RiskOffBelow: 35,
	}
}

// Council aggregates module scores into Decisions.
type Council struct {
	cfg     Config
	weights WeightProvider
	nowFn   func() time.Time
}

func New(cfg Config, weights WeightProvider) *Council {
	if cfg.MinQuorum <= 0 {
		cfg.MinQuorum = DefaultConfig().MinQuorum
	}
	if cfg.MaxScoreAge <= 0 {
		cfg.MaxScoreAge = DefaultConfig().MaxScoreAge
	}
	if weights == nil {
		weights = StaticWeights{Table: DefaultWeightTable()}
	}
	return &Council{cfg: cfg, weights: weights, nowFn: time.Now}
}

// normalize maps the 0..100 raw scale onto -1..+1.
func normalize(v float64) float64 {
	n := (v - 50) / 50
	if n < -1 {
		return -1
	}
	if n > 1 {
		return 1
	}
	return n
}

// Decide runs one aggregation round. refPrice is the quote the round was
// computed against (zero when unknown); it is stamped into the Decision for
// the governor's divergence check.
func (c *Council) Decide(symbol string, scores []score.ModuleScore, refPrice float64) Decision {
	now := c.nowFn()

	var regimeScore *score.ModuleScore
	var macroScore *score.ModuleScore
	voting := make([]score.ModuleScore, 0, len(scores))
	for i := range scores {
		s := scores[i]
		if !s.Valid() {
			continue
		}
		if s.Age(now) > c.cfg.MaxScoreAge {
			logger.Debugf("council: %s score for %s stale by %s, excluded", s.Module, symbol, s.Age(now)-c.cfg.MaxScoreAge)
			continue
		}
		if s.Module == score.ModuleRegime {
			// The regime module calibrates the others, it does not vote.
			regimeScore = &scores[i]
			continue
		}
		if s.Module == score.ModuleMacro {
			macroScore = &scores[i]
		}
		voting = append(voting, s)
	}

	regime := c.classifyRegime(regimeScore)
	weights := c.weights.WeightsFor(regime)

	contribs := make([]contribution, 0, len(voting))
	for _, s := range voting {
		w, ok := weights[s.Module]
		if !ok || w <= 0 {
			continue
		}
		contribs = append(contribs, contribution{
			module: s.Module,
			norm:   normalize(s.Value),
			weight: w,
			conf:   s.Confidence,
		})
	}

	stance := stanceFromMacro(macroScore)

	if len(contribs) < c.cfg.MinQuorum {
		d := Decision{
			Symbol:         symbol,
			Action:         ActionNeutral,
			Confidence:     0,
			Stance:         stance,
			ReferencePrice: refPrice,
			QuorumMet:      false,
			ModulesUsed:    len(contribs),
			Timestamp:      now,
		}
		d.Rationale = rationaleText(d)
		return d
	}

	var sumW, sumWN, sumWConf float64
	for _, cb := range contribs {
		sumW += cb.weight
		sumWN += cb.weight * cb.norm
		sumWConf += cb.weight * cb.conf
	}
	netSupport := sumWN / sumW
	meanConf := sumWConf / sumW

	confidence := agreement(contribs) * stanceFactor(stance) * meanConf
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	// Dominant module: largest weighted absolute contribution, ties broken by
	// module name for determinism.
	sort.Slice(contribs, func(i, j int) bool {
		wi := contribs[i].weight * math.Abs(contribs[i].norm)
		wj := contribs[j].weight * math.Abs(contribs[j].norm)
		if wi != wj {
			return wi > wj
		}
		return contribs[i].module < contribs[j].module
	})
	dominant := contribs[0].module

	d := Decision{
		Symbol:         symbol,
		Action:         c.mapAction(netSupport),
		Confidence:     confidence,
		NetSupport:     netSupport,
		DominantModule: dominant,
		Stance:         stance,
		ReferencePrice: refPrice,
		QuorumMet:      true,
		ModulesUsed:    len(contribs),
		Timestamp:      now,
	}
	d.Rationale = rationaleText(d)
	return d
}

func (c *Council) mapAction(netSupport float64) Action {
	switch {
	case netSupport >= c.cfg.StrongBuy:
		return ActionAggressiveBuy
	case netSupport >= c.cfg.Buy:
		return ActionAccumulate
	case netSupport <= c.cfg.StrongSell:
		return ActionLiquidate
	case netSupport <= c.cfg.Sell:
		return ActionTrim
	default:
		return ActionNeutral
	}
}

func (c *Council) classifyRegime(s *score.ModuleScore) Regime {
	if s == nil {
		return RegimeRange
	}
	switch {
	case s.Value >= c.cfg.TrendAbove:
		return RegimeTrend
	case s.Value <= c.cfg.RiskOffBelow:
		return RegimeRiskOff
	default:
		return RegimeRange
	}
}

type contribution struct {
	module score.ModuleID
	norm   float64
	weight float64
	conf   float64
}

// agreement is 1 minus the spread of the normalized votes. A 90-vs-10 split
// suppresses confidence regardless of where the weighted mean lands.
func agreement(contribs []contribution) float64 {
	if len(contribs) == 0 {
		return 0
	}
	mean := 0.0
	for _, c := range contribs {
		mean += c.norm
	}
	mean /= float64(len(contribs))
	variance := 0.0
	for _, c := range contribs {
		d := c.norm - mean
		variance += d * d
	}
	variance /= float64(len(contribs))
	a := 1 - math.Sqrt(variance)
	if a < 0 {
		return 0
	}
	return a
}

func stanceFromMacro(s *score.ModuleScore) Stance {
	if s == nil {
		return StanceCautious
	}
	switch {
	case s.Value >= 70:
		return StanceRiskOn
	case s.Value >= 50:
		return StanceCautious
	case s.Value >= 30:
		return StanceDefensive
	default:
		return StanceRiskOff
	}
}

func stanceFactor(s Stance) float64 {
	switch s {
	case StanceRiskOn:
		return 1.0
	case StanceCautious:
		return 0.9
	case StanceDefensive:
		return 0.75
	case StanceRiskOff:
		return 0.6
	default:
		return 0.85
	}
}
