package optim

import "math"

// Plateau reduces the learning rate once the monitored loss has stopped
// improving for more than patience consecutive epochs.
type Plateau struct {
	opt       *Adam
	factor    float64
	patience  int
	threshold float64

	best float64
	bad  int
}

// NewPlateau returns a min-mode scheduler over the given optimizer.
func NewPlateau(opt *Adam, factor float64, patience int) *Plateau {
	return &Plateau{
		opt:       opt,
		factor:    factor,
		patience:  patience,
		threshold: 1e-4,
		best:      math.Inf(1),
	}
}

// Step records one epoch's loss and reports whether the learning rate was
// reduced.
func (p *Plateau) Step(loss float64) bool {
	if loss < p.best*(1-p.threshold) {
		p.best = loss
		p.bad = 0
		return false
	}
	p.bad++
	if p.bad <= p.patience {
		return false
	}
	p.opt.SetLR(p.opt.LR() * p.factor)
	p.bad = 0
	return true
}
