package traffic

// DefaultLevel is the congestion level assumed when a segment reports
// no data at all. Fluid traffic is the city-wide baseline.
const DefaultLevel = LevelFluid

// Reconcile resolves a segment's usual and actual congestion readings
// into one effective level:
//
//   - both unknown: assume DefaultLevel (fluid);
//   - actual known and different from usual: the live signal overrides
//     the historical baseline;
//   - otherwise: the usual level.
//
// Pure and total over all level pairs.
func Reconcile(usual, actual Level) Level {
	if usual == LevelNoData && actual == LevelNoData {
		return DefaultLevel
	}
	if actual != LevelNoData && actual != usual {
		return actual
	}
	return usual
}

// ReconcileSample resolves a sample's two readings.
func ReconcileSample(s CongestionSample) Level {
	return Reconcile(s.Usual, s.Actual)
}
