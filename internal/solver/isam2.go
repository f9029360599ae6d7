// Package solver implements component F, the incremental updater that
// orchestrates every other component (ordering, elimination, Bayes tree,
// wildfire, relinearization, step control) behind the public ISAM2 type.
package solver

import (
	"go.uber.org/zap"

	"github.com/isam2go/isam2/internal/bayestree"
	"github.com/isam2go/isam2/internal/elimination"
	"github.com/isam2go/isam2/internal/key"
	"github.com/isam2go/isam2/internal/linalg"
	"github.com/isam2go/isam2/internal/metrics"
	"github.com/isam2go/isam2/internal/nonlinear"
	"github.com/isam2go/isam2/internal/ordering"
	"github.com/isam2go/isam2/internal/relinearize"
	"github.com/isam2go/isam2/internal/stepcontrol"
	"github.com/isam2go/isam2/internal/values"
	"github.com/isam2go/isam2/internal/variableindex"
	"github.com/isam2go/isam2/internal/wildfire"
	"github.com/isam2go/isam2/pkg/logger"
)

// ISAM2 is the incremental nonlinear least-squares solver of spec.md. It is
// not safe for concurrent use: Update mutates most internal state, and the
// CalculateEstimate family mutates the cached linear delta lazily, per
// spec.md 5.
type ISAM2 struct {
	params ISAM2Params

	graph    *nonlinear.Graph
	theta    *values.Values
	varIndex *variableindex.VariableIndex
	ord      *ordering.Ordering
	tree     *bayestree.BayesTree

	deltaRaw      *linalg.VectorValues
	replacedMask  map[key.Slot]bool
	deltaUpToDate bool

	callCounter int
	dogleg      *stepcontrol.DogLeg

	cache   *linearCache
	logger  logger.Logger
	metrics *metrics.Registry
}

// Option configures an ISAM2 instance beyond ISAM2Params, mirroring the
// teacher's functional-option constructors.
type Option func(*ISAM2)

// WithLogger overrides the default no-op logger.
func WithLogger(l logger.Logger) Option {
	return func(s *ISAM2) { s.logger = l }
}

// WithMetricsRegistry overrides the default private Prometheus registry,
// e.g. to federate it into a host process's own registry.
func WithMetricsRegistry(r *metrics.Registry) Option {
	return func(s *ISAM2) { s.metrics = r }
}

// New builds an ISAM2 instance with the given parameters, ready to accept
// its first Update.
func New(params ISAM2Params, opts ...Option) *ISAM2 {
	s := &ISAM2{
		params:       params,
		graph:        nonlinear.New(),
		theta:        values.New(),
		varIndex:     variableindex.New(),
		ord:          ordering.New(),
		tree:         bayestree.New(),
		deltaRaw:     linalg.NewVectorValues(),
		replacedMask: make(map[key.Slot]bool),
		logger:       logger.NewNoopLogger(),
		metrics:      metrics.New(),
	}
	if params.Optimization.Kind == stepcontrol.DogLegKind {
		s.dogleg = stepcontrol.NewDogLeg(params.Optimization.InitialDelta, params.Optimization.AdaptationMode)
	}
	if params.CacheLinearizedFactors {
		if c, err := newLinearCache(100000); err == nil {
			s.cache = c
		}
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Params returns the configuration this instance was built with.
func (s *ISAM2) Params() ISAM2Params { return s.params }

// Metrics returns the instance's private Prometheus registry.
func (s *ISAM2) Metrics() *metrics.Registry { return s.metrics }

// GetOrdering returns the current Key<->Slot ordering.
func (s *ISAM2) GetOrdering() *ordering.Ordering { return s.ord }

// GetFactorsUnsafe returns the live nonlinear factor graph without copying;
// callers must not mutate it.
func (s *ISAM2) GetFactorsUnsafe() *nonlinear.Graph { return s.graph }

// GetDelta returns the current linear delta, refreshing it first if stale.
func (s *ISAM2) GetDelta() *linalg.Permuted {
	s.refreshDelta(s.params.Optimization.WildfireThreshold)
	return linalg.NewPermuted(s.deltaRaw)
}

// CalculateEstimate returns theta retracted by the current delta,
// refreshing the delta first if stale.
func (s *ISAM2) CalculateEstimate() *values.Values {
	s.refreshDelta(s.params.Optimization.WildfireThreshold)
	return s.theta.Retract(s.deltaRaw, s.ord)
}

// CalculateBestEstimate forces a full back-substitution ignoring
// wildfireThreshold, then returns theta retracted by the refreshed delta.
func (s *ISAM2) CalculateBestEstimate() *values.Values {
	s.refreshDelta(0)
	return s.theta.Retract(s.deltaRaw, s.ord)
}

func (s *ISAM2) refreshDelta(threshold float64) {
	if s.deltaUpToDate && threshold >= s.params.Optimization.WildfireThreshold {
		return
	}
	perm := linalg.NewPermuted(s.deltaRaw)
	wildfire.Run(s.tree, s.ord, perm, s.replacedMask, threshold)
	s.deltaUpToDate = true
}

// CalculateEstimateKey is the faster single-variable form of
// CalculateEstimate of spec.md 6: it refreshes only the path from k's
// owning clique to the tree root rather than the whole tree.
func (s *ISAM2) CalculateEstimateKey(k key.Key) (values.Value, bool) {
	val, has := s.theta.At(k)
	if !has {
		return nil, false
	}
	idx, ok := s.tree.CliqueOf(k)
	if !ok {
		return val, true
	}
	path := s.tree.AncestorsOf(idx)
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	lookup := func(kk key.Key) []float64 {
		slot, ok := s.ord.Slot(kk)
		if !ok {
			return nil
		}
		return s.deltaRaw.At(slot)
	}
	write := func(kk key.Key, v []float64) {
		slot, ok := s.ord.Slot(kk)
		if !ok {
			return
		}
		s.deltaRaw.Set(slot, v)
		delete(s.replacedMask, slot)
	}
	for _, cidx := range path {
		s.tree.Clique(cidx).BackSubstitute(lookup, write)
	}
	slot, ok := s.ord.Slot(k)
	if !ok {
		return val, true
	}
	return val.Retract(s.deltaRaw.At(slot)), true
}

func (s *ISAM2) errorAt(theta *values.Values, enabled bool) *float64 {
	if !enabled {
		return nil
	}
	e := s.graph.Error(theta)
	return &e
}

// Update is the incremental updater of spec.md 4.F: it absorbs new
// variables and factors, decides which variables to relinearize, marks and
// detaches the affected subtree, locally re-orders and re-eliminates, then
// refreshes the linear delta and applies the accepted step. Every error
// except ErrInvariantViolation is returned before the instance's graph,
// theta, ordering, delta or Bayes tree has changed. ErrInvariantViolation
// is returned after the tree has already been detached and re-committed,
// and the instance is not usable afterwards.
func (s *ISAM2) Update(
	newFactors []nonlinear.Factor,
	newValues map[key.Key]values.Value,
	removeFactorIndices []int,
	constrainedKeys []key.Key,
	forceRelinearize bool,
) (UpdateResult, error) {
	if err := s.validate(newFactors, newValues, removeFactorIndices); err != nil {
		return UpdateResult{}, err
	}

	errBefore := s.errorAt(s.theta, s.params.EvaluateNonlinearError)

	// Working copies: every mutation until the final commit touches only
	// these clones, so a fallible step (elimination) can abort without the
	// receiver's state ever having moved (spec.md 7).
	wGraph := s.graph.Clone()
	wVarIndex := s.varIndex.Clone()
	wOrd := s.ord.Clone()
	wTheta := s.theta.Clone()
	wDelta := s.deltaRaw.Clone()
	wMask := make(map[key.Slot]bool, len(s.replacedMask))
	for k, v := range s.replacedMask {
		wMask[k] = v
	}
	wCallCounter := s.callCounter + 1

	// Step 1: absorb new variables.
	for k, v := range newValues {
		if err := wTheta.Insert(k, v); err != nil {
			return UpdateResult{}, preconditionErr("update: %v", err)
		}
		wVarIndex.SetDim(k, v.Dim())
		if _, err := wOrd.Add(k); err != nil {
			return UpdateResult{}, preconditionErr("update: %v", err)
		}
	}

	// Step 2: register factors. Capture removed factors' keys before
	// tombstoning, since they belong to the observed set (step 3).
	var removedKeys []key.Key
	for _, idx := range removeFactorIndices {
		if f := wGraph.At(idx); f != nil {
			removedKeys = append(removedKeys, f.Keys()...)
		}
		if err := wGraph.Remove(idx); err != nil {
			return UpdateResult{}, preconditionErr("update: remove factor %d: %v", idx, err)
		}
	}
	wVarIndex.Remove(removeFactorIndices)

	newFactorIndices := make([]int, len(newFactors))
	var newFactorKeys []key.Key
	for i, f := range newFactors {
		idx := wGraph.Add(f)
		newFactorIndices[i] = idx
		newFactorKeys = append(newFactorKeys, f.Keys()...)
		wVarIndex.Augment([]variableindex.Factor{{Index: idx, Keys: f.Keys(), Dims: f.Dims()}})
	}

	// Step 3: determine observed variables.
	observed := dedupeKeys(append(append([]key.Key(nil), newFactorKeys...), removedKeys...))

	// Step 4/4.H: decide relinearization, refreshing delta first (4.H.1).
	var relinSet []key.Key
	permDelta := linalg.NewPermuted(wDelta)
	if s.params.EnableRelinearization && (wCallCounter%s.params.RelinearizeSkip == 0 || forceRelinearize) {
		wildfire.Run(s.tree, wOrd, permDelta, wMask, s.params.Optimization.WildfireThreshold)
		relinSet = relinearize.Select(wOrd, permDelta, s.params.RelinearizeThreshold)
	}

	if wDelta.HasNonFinite() {
		return UpdateResult{}, overflowErr("update: non-finite value in linear delta")
	}

	// 4.H.3: retract relinearized variables into theta, zero their delta.
	for _, k := range relinSet {
		slot, ok := wOrd.Slot(k)
		if !ok {
			continue
		}
		val, ok := wTheta.At(k)
		if !ok {
			continue
		}
		d := wDelta.At(slot)
		wTheta.Set(k, val.Retract(d))
		wDelta.Set(slot, make([]float64, len(d)))
	}

	// Step 5: mark. M = observed ∪ R ∪ ancestors-to-root of either.
	markedSet := make(map[key.Key]bool)
	for _, k := range observed {
		markedSet[k] = true
	}
	for _, k := range relinSet {
		markedSet[k] = true
	}
	for k := range markedSet {
		if idx, ok := s.tree.CliqueOf(k); ok {
			for _, a := range s.tree.AncestorsOf(idx) {
				for _, f := range s.tree.Clique(a).Frontals() {
					markedSet[f] = true
				}
			}
		}
	}
	markedKeys := make([]key.Key, 0, len(markedSet))
	for k := range markedSet {
		markedKeys = append(markedKeys, k)
	}

	// Step 6: plan the detach, read-only against the still-untouched tree.
	orphanIdx, boundaryFactors := s.planDetach(markedKeys)

	// Step 7: assemble the local factor set.
	localFactors, err := s.assembleLocalFactors(wGraph, wTheta, markedSet, relinSet, boundaryFactors)
	if err != nil {
		return UpdateResult{}, err
	}

	var orphanSeparatorKeys []key.Key
	for _, o := range orphanIdx {
		orphanSeparatorKeys = append(orphanSeparatorKeys, s.tree.Clique(o).Separator()...)
	}

	// Step 8: local ordering.
	localVars, factorKeyLists := localVariableSet(localFactors)
	constrained := make(map[key.Key]bool, len(constrainedKeys)+len(orphanSeparatorKeys))
	for _, k := range constrainedKeys {
		constrained[k] = true
	}
	for _, k := range orphanSeparatorKeys {
		constrained[k] = true
	}
	localOrder := ordering.MinDegree(localVars, factorKeyLists, constrained)

	// Step 9: eliminate locally, retrying once under QR on indefiniteness.
	result, err := eliminateWithFallback(localFactors, localOrder, s.params.Factorization)
	if err != nil {
		s.logger.Warn("local elimination failed", zap.Error(err))
		return UpdateResult{}, err
	}

	// Everything above this point touched only working copies and
	// read-only tree queries. From here the receiver's tree is mutated in
	// place; the only failure left is the running-intersection check below,
	// which is fatal.
	reassignedSlots := wOrd.Reassign(localOrder)
	for i, slot := range reassignedSlots {
		k := localOrder[i]
		dim, _ := wVarIndex.Dim(k)
		if !wDelta.Has(slot) {
			wDelta.Insert(slot, make([]float64, dim))
		}
		wMask[slot] = true
	}

	for _, k := range markedKeys {
		if idx, ok := s.tree.CliqueOf(k); ok {
			s.tree.DetachSubtreeAbove(idx)
		}
	}
	s.commitCliques(result, orphanIdx)

	if bad := s.tree.CheckRunningIntersection(); bad >= 0 {
		return UpdateResult{}, invariantErr("update: running intersection violated at clique %d", bad)
	}

	// Step 10/11: refresh the delta and apply the step under the
	// newly-committed tree and ordering.
	lastBacksub, accept, errAfter := s.applyStep(wGraph, wTheta, wDelta, wMask, wOrd)

	s.graph = wGraph
	s.varIndex = wVarIndex
	s.ord = wOrd
	s.theta = wTheta
	s.deltaRaw = wDelta
	s.replacedMask = wMask
	s.callCounter = wCallCounter
	s.deltaUpToDate = true

	s.metrics.Cliques.Set(float64(s.tree.Size()))
	s.metrics.VariablesRelinearized.Add(float64(len(relinSet)))
	s.metrics.VariablesReeliminated.Add(float64(len(reassignedSlots)))
	s.metrics.LastBacksubVariableCount.Set(float64(lastBacksub))
	if s.dogleg != nil {
		s.metrics.DogLegRadius.Set(s.dogleg.Radius)
	}

	s.logger.Debug("update complete",
		zap.Int("marked", len(markedKeys)),
		zap.Int("relinearized", len(relinSet)),
		zap.Int("reeliminated", len(reassignedSlots)),
		zap.Int("cliques", s.tree.Size()),
		zap.Bool("step_accepted", accept),
	)

	res := UpdateResult{
		ErrorBefore:           errBefore,
		ErrorAfter:            errAfter,
		VariablesRelinearized: len(relinSet),
		VariablesReeliminated: len(reassignedSlots),
		Cliques:               s.tree.Size(),
		NewFactorIndices:      newFactorIndices,
	}
	if s.params.EnableDetailedResults {
		res.Detail = s.buildDetail(markedSet, relinSet, observed, newFactorKeys, reassignedSlots)
	}
	return res, nil
}

func dedupeKeys(ks []key.Key) []key.Key {
	seen := make(map[key.Key]bool, len(ks))
	out := make([]key.Key, 0, len(ks))
	for _, k := range ks {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

func localVariableSet(factors []linalg.LinearFactor) ([]key.Key, [][]key.Key) {
	seen := make(map[key.Key]bool)
	var vars []key.Key
	lists := make([][]key.Key, len(factors))
	for i, f := range factors {
		ks := f.VarKeys()
		lists[i] = ks
		for _, k := range ks {
			if !seen[k] {
				seen[k] = true
				vars = append(vars, k)
			}
		}
	}
	return vars, lists
}

// validate checks every spec.md 7 precondition before any state is
// touched.
func (s *ISAM2) validate(newFactors []nonlinear.Factor, newValues map[key.Key]values.Value, removeIdx []int) error {
	for k := range newValues {
		if s.theta.Has(k) {
			return preconditionErr("update: key %s already present in theta", k)
		}
	}
	for _, f := range newFactors {
		for _, k := range f.Keys() {
			if _, isNew := newValues[k]; isNew {
				continue
			}
			if !s.theta.Has(k) {
				return preconditionErr("update: factor references unknown key %s", k)
			}
		}
	}
	for _, idx := range removeIdx {
		if s.graph.At(idx) == nil {
			return preconditionErr("update: unknown or already-removed factor index %d", idx)
		}
	}
	return nil
}

// planDetach computes, without mutating the tree, the orphans (children of
// a to-be-removed clique that are themselves not removed) along with their
// cached boundary factors.
func (s *ISAM2) planDetach(markedKeys []key.Key) (orphanIdx []int, boundary []linalg.LinearFactor) {
	removed := make(map[int]bool)
	for _, k := range markedKeys {
		idx, ok := s.tree.CliqueOf(k)
		if !ok {
			continue
		}
		for _, a := range s.tree.AncestorsOf(idx) {
			removed[a] = true
		}
	}
	seenOrphan := make(map[int]bool)
	for idx := range removed {
		for _, ch := range s.tree.ChildrenOf(idx) {
			if !removed[ch] && !seenOrphan[ch] {
				seenOrphan[ch] = true
				orphanIdx = append(orphanIdx, ch)
				if cf := s.tree.Clique(ch).CachedFactor; cf != nil {
					boundary = append(boundary, cf)
				}
			}
		}
	}
	return orphanIdx, boundary
}

// assembleLocalFactors builds the union of (a) cached boundary factors from
// orphans, (b) the linearization (fresh for a relinearized variable,
// otherwise cache-backed when enabled) of every live nonlinear factor
// touching any variable in marked, and (c) new factors from step 2 — which
// is already implied by (b), since every new factor's keys are observed and
// therefore in marked — per spec.md 4.F.7. Factors that touch none of
// marked are left out entirely: they belong to cliques that are not being
// torn down, and including them would double-count information already
// summarized by a boundary factor.
func (s *ISAM2) assembleLocalFactors(
	g *nonlinear.Graph,
	theta *values.Values,
	marked map[key.Key]bool,
	relinSet []key.Key,
	boundary []linalg.LinearFactor,
) ([]linalg.LinearFactor, error) {
	relin := make(map[key.Key]bool, len(relinSet))
	for _, k := range relinSet {
		relin[k] = true
	}

	factors := append([]linalg.LinearFactor(nil), boundary...)
	for idx := 0; idx < g.Len(); idx++ {
		f := g.At(idx)
		if f == nil {
			continue
		}
		touchesMarked := false
		touchedByR := false
		for _, k := range f.Keys() {
			if marked[k] {
				touchesMarked = true
			}
			if relin[k] {
				touchedByR = true
			}
		}
		if !touchesMarked {
			continue
		}

		var lf linalg.LinearFactor
		var err error
		if touchedByR || !s.params.CacheLinearizedFactors {
			lf, err = f.Linearize(theta)
			if err != nil {
				return nil, invariantErr("update: linearize factor %d: %v", idx, err)
			}
			s.cache.set(idx, lf)
		} else if cached, ok := s.cache.get(idx); ok {
			lf = cached
		} else {
			lf, err = f.Linearize(theta)
			if err != nil {
				return nil, invariantErr("update: linearize factor %d: %v", idx, err)
			}
			s.cache.set(idx, lf)
		}
		factors = append(factors, lf)
	}
	return factors, nil
}

func eliminateWithFallback(factors []linalg.LinearFactor, order []key.Key, method linalg.Factorization) (*elimination.Result, error) {
	result, err := elimination.Build(factors, order, method)
	if err == nil {
		return result, nil
	}
	if method == linalg.LDL {
		result, err2 := elimination.Build(factors, order, linalg.QR)
		if err2 == nil {
			return result, nil
		}
		return nil, indefiniteErr("update: LDL and QR elimination both failed: %v", err2)
	}
	return nil, indefiniteErr("update: elimination failed: %v", err)
}

// commitCliques inserts the cliques produced by a successful local
// elimination into the tree, reattaching each orphan under the first new
// clique (visited root-to-leaf) whose frontals cover the orphan's
// separator. Any orphan no new clique claims (which should not happen,
// since orphan separators are forced root-adjacent via constrainedKeys in
// Update) is reattached as a child of the first local root instead of
// being silently dropped.
func (s *ISAM2) commitCliques(result *elimination.Result, orphanIdx []int) {
	remaining := append([]int(nil), orphanIdx...)
	firstRootIdx := -1

	var insert func(c *bayestree.Clique, parentIdx int) int
	insert = func(c *bayestree.Clique, parentIdx int) int {
		frontals := make(map[key.Key]bool, len(c.Frontals()))
		for _, f := range c.Frontals() {
			frontals[f] = true
		}
		var claimed, stillRemaining []int
		for _, o := range remaining {
			covered := true
			for _, sepKey := range s.tree.Clique(o).Separator() {
				if !frontals[sepKey] {
					covered = false
					break
				}
			}
			if covered {
				claimed = append(claimed, o)
			} else {
				stillRemaining = append(stillRemaining, o)
			}
		}
		remaining = stillRemaining

		idx := s.tree.Attach(c, parentIdx, claimed, func(*bayestree.Clique) bool { return true })
		if firstRootIdx < 0 && parentIdx < 0 {
			firstRootIdx = idx
		}
		for _, child := range result.Children[c] {
			insert(child, idx)
		}
		return idx
	}

	for _, root := range result.Roots {
		insert(root, -1)
	}

	if firstRootIdx >= 0 {
		for _, o := range remaining {
			oc := s.tree.Clique(o)
			oc.Parent = firstRootIdx
			root := s.tree.Clique(firstRootIdx)
			root.Children = append(root.Children, o)
		}
	}
}

// applyStep runs the configured step controller (4.I) against the
// newly-committed tree and ordering, and returns the wildfire variable
// count, whether the step was accepted, and the post-step nonlinear error
// (nil unless EvaluateNonlinearError).
func (s *ISAM2) applyStep(
	g *nonlinear.Graph,
	theta *values.Values,
	delta *linalg.VectorValues,
	mask map[key.Slot]bool,
	ord *ordering.Ordering,
) (lastBacksub int, accept bool, errAfter *float64) {
	perm := linalg.NewPermuted(delta)
	lastBacksub = wildfire.Run(s.tree, ord, perm, mask, s.params.Optimization.WildfireThreshold)

	if s.params.Optimization.Kind == stepcontrol.GaussNewtonKind {
		gn := stepcontrol.GaussNewton{}
		accept = gn.Accept()
		return lastBacksub, accept, s.errorAt(theta, s.params.EvaluateNonlinearError)
	}

	proposal := s.dogleg.Propose(s.tree, ord, delta)
	errBefore := g.Error(theta)
	candidate := theta.Retract(proposal.Delta, ord)
	after := g.Error(candidate)

	gTree := stepcontrol.Gradient(s.tree, ord)
	predicted := -dotVectorValues(gTree, proposal.Delta) - 0.5*stepcontrol.QuadraticForm(s.tree, ord, proposal.Delta)
	actual := errBefore - after

	var gainRatio float64
	switch {
	case predicted > 0:
		gainRatio = actual / predicted
	case actual > 0:
		gainRatio = 1
	default:
		gainRatio = 0
	}
	accept = s.dogleg.Adapt(gainRatio)

	if accept {
		for _, slot := range proposal.Delta.Slots() {
			delta.Set(slot, make([]float64, len(proposal.Delta.At(slot))))
		}
		*theta = *candidate
	}

	return lastBacksub, accept, s.errorAt(theta, s.params.EvaluateNonlinearError)
}

func dotVectorValues(a, b *linalg.VectorValues) float64 {
	sum := 0.0
	for _, s := range a.Slots() {
		av, bv := a.At(s), b.At(s)
		for i := range av {
			if i < len(bv) {
				sum += av[i] * bv[i]
			}
		}
	}
	return sum
}

func (s *ISAM2) buildDetail(marked map[key.Key]bool, relin, observed, newKeys []key.Key, reassigned []key.Slot) []VariableDetail {
	relinSet := toSet(relin)
	observedSet := toSet(observed)
	newSet := toSet(newKeys)
	reassignedSet := make(map[key.Key]bool, len(reassigned))
	for _, slot := range reassigned {
		if k, ok := s.ord.Key(slot); ok {
			reassignedSet[k] = true
		}
	}

	out := make([]VariableDetail, 0, len(marked))
	for k := range marked {
		inRoot := false
		if idx, ok := s.tree.CliqueOf(k); ok {
			inRoot = s.tree.Clique(idx).Parent < 0
		}
		out = append(out, VariableDetail{
			Key:                 k,
			Reeliminated:        reassignedSet[k],
			AboveRelinThreshold: relinSet[k],
			RelinearizeInvolved: true,
			Relinearized:        relinSet[k],
			Observed:            observedSet[k],
			New:                 newSet[k],
			InRootClique:        inRoot,
		})
	}
	return out
}

func toSet(ks []key.Key) map[key.Key]bool {
	m := make(map[key.Key]bool, len(ks))
	for _, k := range ks {
		m[k] = true
	}
	return m
}
