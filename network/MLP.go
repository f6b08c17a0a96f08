// Package network implements value functions and policies backed by
// feed forward neural networks, with Gorgonia computing the forward
// and backward passes.
//
// Each approximator compiles one computational graph per batch size
// it is evaluated with and caches the graph together with its tape
// machine. Evaluation and gradients are pure in the parameters: every
// call binds the given parameter tree onto the graph's weight nodes
// before running the machine, so the receiver's own parameters never
// enter the computation.
//
// The backward pass is a vector-Jacobian product. A sensitivity node
// the same shape as the prediction is fed into the pseudo-cost
// sum(pred * sens), whose gradient with respect to the weights is the
// sensitivity-weighted sum of the predictions' gradients. Loss
// gradients with respect to each prediction go in as sensitivities
// and loss gradients with respect to the weights come out.
package network

import (
	"fmt"
	"strconv"

	"golang.org/x/exp/rand"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/gotd/tree"
)

// compiled is a computational graph compiled for one batch size,
// together with the tape machine that runs it.
type compiled struct {
	g      *G.ExprGraph
	input  *G.Node
	sens   *G.Node
	layers []*fcLayer

	pred    *G.Node
	predVal G.Value

	learnables G.Nodes
	vm         G.VM
}

// mlp is the shared core of the network approximators: an
// architecture, its current parameters, and a cache of compiled
// graphs keyed by batch size.
type mlp struct {
	features    int
	outputs     int
	hiddenSizes []int
	biases      []bool
	activations []*Activation
	init        G.InitWFn

	params *tree.Tree
	rng    *rand.Rand

	cache map[int]*compiled
}

// newMLP validates an architecture, compiles it once to draw the
// initial parameters, and returns the assembled core. A final linear
// layer of size outputs with a bias and no activation is always
// appended, so hiddenSizes, biases, and activations describe the
// hidden layers alone. A nil init defaults to Glorot uniform
// initialization.
func newMLP(op string, features, outputs int, seed uint64,
	hiddenSizes []int, biases []bool, activations []*Activation,
	init G.InitWFn) (*mlp, error) {
	if features <= 0 {
		return nil, fmt.Errorf("%v: features must be positive, got %v",
			op, features)
	}
	if outputs <= 0 {
		return nil, fmt.Errorf("%v: outputs must be positive, got %v",
			op, outputs)
	}
	if len(hiddenSizes) != len(activations) {
		return nil, fmt.Errorf("%v: invalid number of activations"+
			"\n\twant(%d)\n\thave(%d)", op, len(hiddenSizes),
			len(activations))
	}
	if len(hiddenSizes) != len(biases) {
		return nil, fmt.Errorf("%v: invalid number of biases"+
			"\n\twant(%d)\n\thave(%d)", op, len(hiddenSizes),
			len(biases))
	}
	for i, act := range activations {
		if act == nil {
			return nil, fmt.Errorf("%v: nil activation for hidden "+
				"layer %v", op, i)
		}
	}
	if init == nil {
		init = G.GlorotU(1.0)
	}

	n := &mlp{
		features:    features,
		outputs:     outputs,
		hiddenSizes: append(append([]int{}, hiddenSizes...), outputs),
		biases:      append(append([]bool{}, biases...), true),
		activations: append(append([]*Activation{}, activations...),
			Identity()),
		init:  init,
		rng:   rand.New(rand.NewSource(seed)),
		cache: make(map[int]*compiled),
	}

	// Compiling draws the initial weights through the init function.
	c, err := n.compiledFor(1)
	if err != nil {
		return nil, fmt.Errorf("%v: %v", op, err)
	}
	n.params = harvestParams(c)
	return n, nil
}

// compiledFor returns the compiled graph for a batch size, building
// and caching it on first use.
func (n *mlp) compiledFor(batch int) (*compiled, error) {
	if c, ok := n.cache[batch]; ok {
		return c, nil
	}

	g := G.NewGraph()
	input := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(batch, n.features),
		G.WithName("input"),
		G.WithInit(G.Zeroes()),
	)
	sens := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(batch, n.outputs),
		G.WithName("sensitivity"),
		G.WithInit(G.Zeroes()),
	)

	layers := make([]*fcLayer, len(n.hiddenSizes))
	in := n.features
	for i, out := range n.hiddenSizes {
		layers[i] = newFCLayer(g, "l"+strconv.Itoa(i), in, out,
			n.biases[i], n.activations[i], n.init)
		in = out
	}

	pred := input
	var err error
	for i, l := range layers {
		if pred, err = l.fwd(pred); err != nil {
			return nil, fmt.Errorf("compiledFor: could not compute "+
				"forward pass of layer %v: %v", i, err)
		}
	}

	weighted, err := G.HadamardProd(pred, sens)
	if err != nil {
		return nil, fmt.Errorf("compiledFor: could not weight "+
			"predictions: %v", err)
	}
	cost, err := G.Sum(weighted)
	if err != nil {
		return nil, fmt.Errorf("compiledFor: could not sum weighted "+
			"predictions: %v", err)
	}

	learnables := learnablesOf(layers)
	if _, err := G.Grad(cost, learnables...); err != nil {
		return nil, fmt.Errorf("compiledFor: could not compute "+
			"gradient graph: %v", err)
	}

	c := &compiled{
		g:          g,
		input:      input,
		sens:       sens,
		layers:     layers,
		pred:       pred,
		learnables: learnables,
	}
	G.Read(c.pred, &c.predVal)
	c.vm = G.NewTapeMachine(g, G.BindDualValues(learnables...))

	n.cache[batch] = c
	return c, nil
}

// learnablesOf collects the weight nodes of the layers
func learnablesOf(layers []*fcLayer) G.Nodes {
	learnables := make(G.Nodes, 0, 2*len(layers))
	for _, l := range layers {
		learnables = append(learnables, l.weights)
		if l.bias != nil {
			learnables = append(learnables, l.bias)
		}
	}
	return learnables
}

// harvestParams copies the initialized weight values of a compiled
// graph into a parameter tree with one branch per layer.
func harvestParams(c *compiled) *tree.Tree {
	children := make(map[string]*tree.Tree, len(c.layers))
	for i, l := range c.layers {
		sub := map[string]*tree.Tree{
			"w": leafOf(l.weights.Value()),
		}
		if l.bias != nil {
			sub["b"] = leafOf(l.bias.Value())
		}
		children["l"+strconv.Itoa(i)] = tree.NewBranch(sub)
	}
	return tree.NewBranch(children)
}

// leafOf copies a node value into a fresh tree leaf
func leafOf(value G.Value) *tree.Tree {
	return tree.NewLeaf(value.(*tensor.Dense).Clone().(*tensor.Dense))
}

// bind sets a compiled graph's weight nodes from a parameter tree,
// its input node from a batch of states, and its sensitivity node.
func (n *mlp) bind(op string, c *compiled, params *tree.Tree, s,
	sens []float64) error {
	if !tree.SameStructure(params, n.params) {
		return fmt.Errorf("%v: parameter structure mismatch"+
			"\n\twant(%v)\n\thave(%v)", op, tree.Structure(n.params),
			tree.Structure(params))
	}

	for i, l := range c.layers {
		sub := params.Get("l" + strconv.Itoa(i))
		if err := G.Let(l.weights, sub.Get("w").Value()); err != nil {
			return fmt.Errorf("%v: could not bind weights of layer %v: "+
				"%v", op, i, err)
		}
		if l.bias != nil {
			if err := G.Let(l.bias, sub.Get("b").Value()); err != nil {
				return fmt.Errorf("%v: could not bind bias of layer %v: "+
					"%v", op, i, err)
			}
		}
	}

	batch := len(s) / n.features
	input := tensor.New(tensor.WithShape(batch, n.features),
		tensor.WithBacking(s))
	if err := G.Let(c.input, input); err != nil {
		return fmt.Errorf("%v: could not bind input: %v", op, err)
	}

	sensitivity := tensor.New(tensor.WithShape(batch, n.outputs),
		tensor.WithBacking(sens))
	if err := G.Let(c.sens, sensitivity); err != nil {
		return fmt.Errorf("%v: could not bind sensitivity: %v", op, err)
	}
	return nil
}

// evalAll runs the forward pass on a batch of states at the given
// parameters, returning one row of outputs per state.
func (n *mlp) evalAll(op string, params *tree.Tree, s []float64) (
	[]float64, error) {
	batch, err := n.batchSize(op, s)
	if err != nil {
		return nil, err
	}
	c, err := n.compiledFor(batch)
	if err != nil {
		return nil, fmt.Errorf("%v: %v", op, err)
	}

	err = n.bind(op, c, params, s, make([]float64, batch*n.outputs))
	if err != nil {
		return nil, err
	}
	if err := c.vm.RunAll(); err != nil {
		c.vm.Reset()
		return nil, fmt.Errorf("%v: could not run forward pass: %v", op,
			err)
	}
	c.vm.Reset()

	data := c.predVal.Data().([]float64)
	out := make([]float64, len(data))
	copy(out, data)
	return out, nil
}

// vjp runs the backward pass on a batch of states at the given
// parameters, returning the gradient tree of sum(pred * sens).
func (n *mlp) vjp(op string, params *tree.Tree, s, sens []float64) (
	*tree.Tree, error) {
	batch, err := n.batchSize(op, s)
	if err != nil {
		return nil, err
	}
	if len(sens) != batch*n.outputs {
		return nil, fmt.Errorf("%v: one sensitivity needed per output"+
			"\n\twant(%v)\n\thave(%v)", op, batch*n.outputs, len(sens))
	}
	c, err := n.compiledFor(batch)
	if err != nil {
		return nil, fmt.Errorf("%v: %v", op, err)
	}

	if err := n.bind(op, c, params, s, sens); err != nil {
		return nil, err
	}
	if err := c.vm.RunAll(); err != nil {
		c.vm.Reset()
		return nil, fmt.Errorf("%v: could not run backward pass: %v",
			op, err)
	}
	c.vm.Reset()

	children := make(map[string]*tree.Tree, len(c.layers))
	for i, l := range c.layers {
		wGrad, err := gradOf(op, l.weights)
		if err != nil {
			return nil, err
		}
		sub := map[string]*tree.Tree{"w": wGrad}
		if l.bias != nil {
			bGrad, err := gradOf(op, l.bias)
			if err != nil {
				return nil, err
			}
			sub["b"] = bGrad
		}
		children["l"+strconv.Itoa(i)] = tree.NewBranch(sub)
	}
	return tree.NewBranch(children), nil
}

// gradOf copies a node's accumulated gradient into a fresh leaf
func gradOf(op string, node *G.Node) (*tree.Tree, error) {
	value, err := node.Grad()
	if err != nil {
		return nil, fmt.Errorf("%v: could not read gradient of %v: %v",
			op, node.Name(), err)
	}
	dense, ok := value.(*tensor.Dense)
	if !ok {
		return nil, fmt.Errorf("%v: gradient of %v is not a dense "+
			"tensor", op, node.Name())
	}
	return tree.NewLeaf(dense.Clone().(*tensor.Dense)), nil
}

// Params returns the current parameter tree, one branch per layer.
func (n *mlp) Params() *tree.Tree {
	return n.params
}

// SetParams replaces the current parameters. The new tree must have
// the same structure as the old one.
func (n *mlp) SetParams(params *tree.Tree) error {
	if !tree.SameStructure(params, n.params) {
		return fmt.Errorf("setParams: parameter structure mismatch"+
			"\n\twant(%v)\n\thave(%v)", tree.Structure(n.params),
			tree.Structure(params))
	}
	n.params = params
	return nil
}

// FunctionState returns an empty tree: these networks are stateless.
func (n *mlp) FunctionState() *tree.Tree {
	return tree.NewBranch(nil)
}

// SetFunctionState implements the function approximator interface for
// a stateless network: only an empty state is accepted.
func (n *mlp) SetFunctionState(state *tree.Tree) error {
	if state != nil && state.NumLeaves() != 0 {
		return fmt.Errorf("setFunctionState: network is stateless")
	}
	return nil
}

// RNG returns the network's random number stream.
func (n *mlp) RNG() *rand.Rand {
	return n.rng
}

// Features returns the number of features in a single observation
// vector that the network takes as input.
func (n *mlp) Features() int {
	return n.features
}

// batchSize validates that s is a whole number of feature vectors and
// returns how many.
func (n *mlp) batchSize(op string, s []float64) (int, error) {
	if len(s) == 0 || len(s)%n.features != 0 {
		return 0, fmt.Errorf("%v: states must hold a whole number of "+
			"feature vectors of length %v, got %v values", op,
			n.features, len(s))
	}
	return len(s) / n.features, nil
}
