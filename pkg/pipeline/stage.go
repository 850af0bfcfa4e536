package pipeline

// Stage 流水线阶段
type Stage int

const (
	StageInit Stage = iota
	StageLoadUniverse
	StageCheckMarket
	StageCollectPrices
	StageCollectNews
	StagePersist
	StageNotify
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageInit:
		return "init"
	case StageLoadUniverse:
		return "load_universe"
	case StageCheckMarket:
		return "check_market"
	case StageCollectPrices:
		return "collect_prices"
	case StageCollectNews:
		return "collect_news"
	case StagePersist:
		return "persist"
	case StageNotify:
		return "notify"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
