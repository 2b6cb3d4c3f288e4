package match

type Tier string

const (
	TierRed    Tier = "red"
	TierYellow Tier = "yellow"
	TierGreen  Tier = "green"
)

const (
	QualityExact            = 100
	QualityDomainExtraQuery = 90
	QualityExtraQuery       = 75
	QualityPartial          = 50

	// Qualities below YellowFrom are red, at or above GreenFrom green.
	YellowFrom = 60
	GreenFrom  = 90
)

func TierOf(quality int) Tier {
	switch {
	case quality >= GreenFrom:
		return TierGreen
	case quality >= YellowFrom:
		return TierYellow
	default:
		return TierRed
	}
}

func quality(c candidate, req request) int {
	if c.prepared.Domain {
		if c.extraQuery {
			return QualityDomainExtraQuery
		}
		return QualityExact
	}
	if !c.fullPath(req) {
		return QualityPartial
	}
	if c.extraQuery {
		return QualityExtraQuery
	}
	return QualityExact
}
