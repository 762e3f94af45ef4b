// Package infer derives a structural schema from a bounded sample of
// decoded records, with deterministic type-widening rules.
package infer

import (
	"sort"
	"strconv"
	"time"

	"go-stream-extract/internal/model"
)

// fieldState accumulates observations for one field across the sample.
// tag widens over non-string values only; string values feed the shape
// flags and the two are merged when the schema is finalized.
type fieldState struct {
	name         string
	tag          model.TypeTag
	nullable     bool
	sawNonNull   bool
	sawString    bool
	tsEligible   bool // every string value so far parsed as a timestamp
	intEligible  bool // every string value so far parsed as an integer
	numEligible  bool // every string value so far parsed as a number
	boolEligible bool // every string value so far parsed as a boolean
}

// Infer produces a schema from up to sampleSize records. If the stream
// carries an explicit schema it is returned verbatim and no sampling
// happens. The result is a fixed point: re-running over the same sample
// yields an identical schema (fields ordered by first appearance, keys
// within one record visited in sorted order).
func Infer(samples []model.Record, stream *model.StreamDef) *model.Schema {
	if stream.Schema != nil {
		return stream.Schema
	}
	if len(samples) > stream.InferSamples {
		samples = samples[:stream.InferSamples]
	}

	var order []string
	states := make(map[string]*fieldState)

	for i, rec := range samples {
		keys := make([]string, 0, len(rec))
		for k := range rec {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			st, ok := states[k]
			if !ok {
					st = &fieldState{
					name: k, tag: model.TypeNull,
					tsEligible: true, intEligible: true, numEligible: true, boolEligible: true,
				}
				if i > 0 {
					// absent from earlier records
					st.nullable = true
				}
				states[k] = st
				order = append(order, k)
			}
			observe(st, rec[k])
		}

		// fields known so far but missing from this record are nullable
		for _, k := range order {
			if _, present := rec[k]; !present {
				states[k].nullable = true
			}
		}
	}

	out := &model.Schema{}
	for _, name := range order {
		st := states[name]
		tag := st.tag
		if st.sawString {
			tag = model.Widen(tag, stringShape(st))
		}
		out.Add(model.Field{Name: name, Type: tag, Nullable: st.nullable})
	}
	forceKeyFields(out, stream, states)
	return out
}

// observe folds one value into a field's state.
func observe(st *fieldState, v interface{}) {
	if v == nil {
		st.nullable = true
		return
	}
	st.sawNonNull = true
	switch val := v.(type) {
	case string:
		st.sawString = true
		// one miss per shape demotes it for good
		if st.tsEligible {
			if _, ok := model.ParseTimestamp(val); !ok {
				st.tsEligible = false
			}
		}
		if st.intEligible {
			if _, err := strconv.ParseInt(val, 10, 64); err != nil {
				st.intEligible = false
			}
		}
		if st.numEligible {
			if _, err := strconv.ParseFloat(val, 64); err != nil {
				st.numEligible = false
			}
		}
		if st.boolEligible {
			if _, err := strconv.ParseBool(val); err != nil {
				st.boolEligible = false
			}
		}
	case time.Time:
		st.tag = model.Widen(st.tag, model.TypeTimestamp)
	default:
		st.tag = model.Widen(st.tag, model.TypeOf(val))
	}
}

// stringShape picks the narrowest type every sampled string value of a
// field conforms to. Delimited formats carry everything as text; shape
// detection recovers the column type the way a typed reader would.
func stringShape(st *fieldState) model.TypeTag {
	switch {
	case st.tsEligible:
		return model.TypeTimestamp
	case st.intEligible:
		return model.TypeInteger
	case st.numEligible:
		return model.TypeNumber
	case st.boolEligible:
		return model.TypeBoolean
	default:
		return model.TypeString
	}
}

// forceKeyFields guarantees that key fields and the replication key appear
// in the schema and are non-nullable once any non-null value was observed.
func forceKeyFields(s *model.Schema, stream *model.StreamDef, states map[string]*fieldState) {
	forced := append([]string{}, stream.Keys...)
	if stream.ReplicationKey != "" {
		forced = append(forced, stream.ReplicationKey)
	}
	for _, name := range forced {
		if _, ok := s.Lookup(name); !ok {
			s.Add(model.Field{Name: name, Type: model.TypeString, Nullable: true})
			continue
		}
		if st, ok := states[name]; ok && st.sawNonNull {
			for i := range s.Fields {
				if s.Fields[i].Name == name {
					s.Fields[i].Nullable = false
				}
			}
		}
	}
}
