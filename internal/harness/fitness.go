package harness

const (
	// FailureFitness is reported for trials that produced no usable score.
	// It is far worse than any realistic fitness, so the optimizer drops the
	// trial without the search being interrupted.
	FailureFitness = 1e12

	// TrialCost is the cost reported for every trial. Cost weighted by
	// fidelity is not modeled.
	TrialCost = 1.0

	fitnessScale   = 1e9
	fitnessEpsilon = 1e-6
)

// Result is what the optimizer sees for one trial.
type Result struct {
	Fitness float64
	Cost    float64
}

// Fitness turns a benchmark score (higher is better) into a minimization
// objective. It is strictly decreasing for score >= 0.
func Fitness(score float64) float64 {
	return fitnessScale / (score + fitnessEpsilon)
}

// ScoreFromFitness inverts Fitness.
func ScoreFromFitness(fitness float64) float64 {
	return fitnessScale/fitness - fitnessEpsilon
}

func failed() Result {
	return Result{Fitness: FailureFitness, Cost: TrialCost}
}
