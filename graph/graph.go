// Package graph - Differentiable versions of the losses on gorgonia expression graphs.
//
// Each builder adds the loss to an *G.ExprGraph and returns the scalar cost
// node. Evaluate runs a graph on a tape machine and returns the cost together
// with its gradient with respect to one input.
package graph

import (
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// ops records the first error of a chain of node constructors.
type ops struct {
	err error
}

func (o *ops) do(name string, fn func() (*G.Node, error)) *G.Node {
	if o.err != nil {
		return nil
	}
	n, err := fn()
	if err != nil {
		o.err = errors.Wrap(err, name)
	}
	return n
}

func (o *ops) add(a, b *G.Node) *G.Node {
	return o.do("add", func() (*G.Node, error) { return G.Add(a, b) })
}

func (o *ops) sub(a, b *G.Node) *G.Node {
	return o.do("sub", func() (*G.Node, error) { return G.Sub(a, b) })
}

func (o *ops) mul(a, b *G.Node) *G.Node {
	return o.do("mul", func() (*G.Node, error) { return G.HadamardProd(a, b) })
}

func (o *ops) div(a, b *G.Node) *G.Node {
	return o.do("div", func() (*G.Node, error) { return G.HadamardDiv(a, b) })
}

func (o *ops) matmul(a, b *G.Node) *G.Node {
	return o.do("matmul", func() (*G.Node, error) { return G.Mul(a, b) })
}

func (o *ops) abs(a *G.Node) *G.Node {
	return o.do("abs", func() (*G.Node, error) { return G.Abs(a) })
}

func (o *ops) neg(a *G.Node) *G.Node {
	return o.do("neg", func() (*G.Node, error) { return G.Neg(a) })
}

func (o *ops) log(a *G.Node) *G.Node {
	return o.do("log", func() (*G.Node, error) { return G.Log(a) })
}

func (o *ops) square(a *G.Node) *G.Node {
	return o.do("square", func() (*G.Node, error) { return G.Square(a) })
}

func (o *ops) relu(a *G.Node) *G.Node {
	return o.do("rectify", func() (*G.Node, error) { return G.Rectify(a) })
}

func (o *ops) sum(a *G.Node, axes ...int) *G.Node {
	return o.do("sum", func() (*G.Node, error) { return G.Sum(a, axes...) })
}

func (o *ops) mean(a *G.Node) *G.Node {
	return o.do("mean", func() (*G.Node, error) { return G.Mean(a) })
}

func (o *ops) column(a *G.Node, i int) *G.Node {
	return o.do("slice", func() (*G.Node, error) { return G.Slice(a, nil, G.S(i)) })
}

// min is the elementwise minimum, (a + b - |a - b|) / 2.
func (o *ops) min(a, b *G.Node) *G.Node {
	return o.mul(o.sub(o.add(a, b), o.abs(o.sub(a, b))), scalar(0.5))
}

func scalar(v float32) *G.Node { return G.NewConstant(v) }

// constant adds a float32 tensor constant of the given shape.
func constant(data []float32, dims ...int) *G.Node {
	return G.NewConstant(tensor.New(tensor.WithShape(dims...), tensor.WithBacking(data)))
}

func filled(v float32, dims ...int) *G.Node {
	n := 1
	for _, d := range dims {
		n *= d
	}
	data := make([]float32, n)
	for i := range data {
		data[i] = v
	}
	return constant(data, dims...)
}

// Input adds a named float32 matrix holding value to g.
func Input(g *G.ExprGraph, name string, value *tensor.Dense) *G.Node {
	return G.NewMatrix(g, tensor.Float32, G.WithShape(value.Shape()...), G.WithName(name), G.WithValue(value))
}

// Result is the outcome of Evaluate.
type Result struct {
	// Loss is the value of the cost node.
	Loss float32
	// Grad is d(Loss)/d(wrt), laid out like wrt.
	Grad *tensor.Dense
}

// Evaluate differentiates cost with respect to wrt, runs g and collects the
// cost and the gradient.
//
// Arguments:
//   - g: The graph holding cost and wrt.
//   - cost: A scalar node.
//   - wrt: The input to differentiate against.
//
// Returns:
//   - *Result: The loss and gradient.
//   - error: Any error from symbolic differentiation or execution.
func Evaluate(g *G.ExprGraph, cost, wrt *G.Node) (*Result, error) {
	if _, err := G.Grad(cost, wrt); err != nil {
		return nil, errors.Wrap(err, "differentiate")
	}

	vm := G.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		return nil, errors.Wrap(err, "run graph")
	}

	loss, ok := cost.Value().Data().(float32)
	if !ok {
		return nil, errors.Errorf("cost is not a float32 scalar: %v", cost.Value())
	}
	gv, err := wrt.Grad()
	if err != nil {
		return nil, errors.Wrap(err, "read gradient")
	}
	data, ok := gv.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("gradient is not float32: %T", gv.Data())
	}
	grad := make([]float32, len(data))
	copy(grad, data)
	return &Result{Loss: loss, Grad: tensor.New(tensor.WithShape(wrt.Shape()...), tensor.WithBacking(grad))}, nil
}
