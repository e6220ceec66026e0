package types

// PlanSummary holds the bucket sizes of an ExecutionPlan.
type PlanSummary struct {
	Install   int
	Update    int
	Remove    int
	Unchanged int
}

// ExecutionPlan partitions the desired and previous artifacts into disjoint
// ordered sequences. Install, Update and Unchanged preserve the order of the
// desired list; Remove is sorted by key.
type ExecutionPlan struct {
	Install   []ArtifactDescriptor
	Update    []ArtifactDescriptor
	Remove    []ArtifactDescriptor
	Unchanged []ArtifactDescriptor
}

// Summary returns the number of artifacts in each bucket.
func (p *ExecutionPlan) Summary() PlanSummary {
	return PlanSummary{
		Install:   len(p.Install),
		Update:    len(p.Update),
		Remove:    len(p.Remove),
		Unchanged: len(p.Unchanged),
	}
}

// Materialize returns the artifacts whose bytes must be written, installs
// first.
func (p *ExecutionPlan) Materialize() []ArtifactDescriptor {
	out := make([]ArtifactDescriptor, 0, len(p.Install)+len(p.Update))
	out = append(out, p.Install...)
	return append(out, p.Update...)
}

// IsEmpty reports whether the plan changes nothing.
func (p *ExecutionPlan) IsEmpty() bool {
	return len(p.Install) == 0 && len(p.Update) == 0 && len(p.Remove) == 0
}

// PromoteUnchanged moves the Unchanged artifacts accepted by accept into
// Update, after the existing updates, and returns how many moved.
func (p *ExecutionPlan) PromoteUnchanged(accept func(ArtifactDescriptor) bool) int {
	var stay []ArtifactDescriptor
	moved := 0
	for _, d := range p.Unchanged {
		if accept(d) {
			p.Update = append(p.Update, d)
			moved++
			continue
		}
		stay = append(stay, d)
	}
	p.Unchanged = stay
	return moved
}
