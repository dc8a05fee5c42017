package testkit

import (
	"math"
	"math/rand/v2"
)

// Rand is a seeded, reproducible source for synthetic athletes
type Rand struct {
	r *rand.Rand
}

// NewRand creates a PCG-backed source. The same seed always yields the same stream.
func NewRand(seed uint64) *Rand {
	return &Rand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Float64 returns a uniform value in [0,1)
func (g *Rand) Float64() float64 { return g.r.Float64() }

// Normal returns a standard normal value (Box-Muller, two uniforms per call)
func (g *Rand) Normal() float64 {
	u1 := 1 - g.r.Float64()
	u2 := g.r.Float64()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

// Normals returns n standard normal values
func (g *Rand) Normals(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = g.Normal()
	}
	return out
}

// CorrelatedPair returns x and y of length n whose sample Pearson correlation is exactly r.
// x has the given mean and standard deviation; y is standardized.
func (g *Rand) CorrelatedPair(n int, r, meanX, sdX float64) (x, y []float64) {
	zx := standardize(g.Normals(n))
	e := g.Normals(n)

	// remove the component of e along zx, then restandardize
	dot := 0.0
	for i := range e {
		dot += e[i] * zx[i]
	}
	dot /= float64(n)
	for i := range e {
		e[i] -= dot * zx[i]
	}
	ze := standardize(e)

	x = make([]float64, n)
	y = make([]float64, n)
	k := math.Sqrt(1 - r*r)
	for i := 0; i < n; i++ {
		x[i] = meanX + sdX*zx[i]
		y[i] = r*zx[i] + k*ze[i]
	}
	return x, y
}

func standardize(xs []float64) []float64 {
	n := float64(len(xs))
	mean := 0.0
	for _, v := range xs {
		mean += v
	}
	mean /= n
	ss := 0.0
	for _, v := range xs {
		ss += (v - mean) * (v - mean)
	}
	sd := math.Sqrt(ss / n)
	out := make([]float64, len(xs))
	for i, v := range xs {
		out[i] = (v - mean) / sd
	}
	return out
}
