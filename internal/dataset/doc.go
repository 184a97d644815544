// Package dataset generates the deterministic person records that the warm-up
// leader loads into the backend and that workers later read back.
//
// Record i is always the same for a given payload size, so any worker can
// compute the key and expected size of an entry without coordination:
//
//	r := dataset.Generate(42, 1024)
//	body := dataset.Serialize(r)
//	key := dataset.Key(42, dataset.NormalizeSuffix("10.0.0.7"))
//
// Records serialize to compact UTF-8 JSON with a fixed field order.
package dataset
