package frame

import (
	"github.com/Carmen-Shannon/oxy-render/engine/model"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/bind_group_provider"
)

// batch is a run of instances sharing a mesh and a shadow flag, contiguous in the model
// buffer so one instanced draw covers it.
type batch struct {
	mesh        bind_group_provider.BindGroupProvider
	first       uint32
	count       uint32
	castsShadow bool
}

// batchSet is the model buffer order of one instance list and its draws.
type batchSet struct {
	models   []model.GPUModel
	batches  []batch
	outlined bool
}

type batchKey struct {
	model       model.Model
	castsShadow bool
}

// buildBatches groups instances by mesh and shadow flag in order of first appearance.
// Instances without an uploaded mesh are skipped, and at most MaxInstances are kept.
//
// Parameters:
//   - instances: the frame's instances
//
// Returns:
//   - batchSet: the GPU models in draw order and one batch per group
func buildBatches(instances []model.Instance) batchSet {
	var order []batchKey
	groups := make(map[batchKey][]int)
	kept := 0
	for i := range instances {
		if kept == MaxInstances {
			break
		}
		in := &instances[i]
		if in.Model == nil || in.Model.MeshProvider() == nil || in.Model.IndexCount() == 0 {
			continue
		}
		key := batchKey{model: in.Model, castsShadow: in.ShadowRelevant()}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
		kept++
	}

	set := batchSet{models: make([]model.GPUModel, 0, kept)}
	for _, key := range order {
		indices := groups[key]
		set.batches = append(set.batches, batch{
			mesh:        key.model.MeshProvider(),
			first:       uint32(len(set.models)),
			count:       uint32(len(indices)),
			castsShadow: key.castsShadow,
		})
		for _, i := range indices {
			set.models = append(set.models, instances[i].GPU())
			set.outlined = set.outlined || instances[i].Outlined
		}
	}
	return set
}
