package knn

import (
	"fmt"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring"
	bsi "github.com/RoaringBitmap/roaring/BitSliceIndexing"
)

// MetadataIndex answers structured filters over document metadata.
//
// Two structures back it:
//   - Roaring bitmaps for categorical values (strings, booleans), keyed by
//     "field:value"
//   - Bit-sliced indexes (BSI) for numeric values, enabling range comparisons
//     without scanning documents
//
// Floats are stored with two decimal places of precision (value * 100).
//
// All methods are safe for concurrent use.
type MetadataIndex struct {
	mu sync.RWMutex

	categorical map[string]*roaring.Bitmap
	numeric     map[string]*bsi.BSI
	allDocs     *roaring.Bitmap
}

// NewMetadataIndex creates an empty metadata index.
func NewMetadataIndex() *MetadataIndex {
	return &MetadataIndex{
		categorical: make(map[string]*roaring.Bitmap),
		numeric:     make(map[string]*bsi.BSI),
		allDocs:     roaring.New(),
	}
}

// Add indexes the metadata of a document. Values must be int, int64,
// float64, string or bool. Empty metadata is ignored.
//
// Add validates every value before mutating the index, so a failed Add
// leaves no partial state behind.
func (idx *MetadataIndex) Add(docID uint32, metadata map[string]interface{}) error {
	if err := validateMetadata(metadata); err != nil {
		return err
	}
	if len(metadata) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.allDocs.Add(docID)
	for key, value := range metadata {
		switch v := value.(type) {
		case int:
			idx.addNumeric(key, docID, int64(v))
		case int64:
			idx.addNumeric(key, docID, v)
		case float64:
			idx.addNumeric(key, docID, int64(v*100))
		case string:
			idx.addCategorical(key, v, docID)
		case bool:
			idx.addCategorical(key, fmt.Sprintf("%v", v), docID)
		}
	}
	return nil
}

func validateMetadata(metadata map[string]interface{}) error {
	for key, value := range metadata {
		switch value.(type) {
		case int, int64, float64, string, bool:
		default:
			return fmt.Errorf("%w: unsupported metadata type for key %s: %T", ErrInvalidDocument, key, value)
		}
	}
	return nil
}

// addCategorical must be called with idx.mu held.
func (idx *MetadataIndex) addCategorical(field, value string, docID uint32) {
	key := categoricalKey(field, value)
	if idx.categorical[key] == nil {
		idx.categorical[key] = roaring.New()
	}
	idx.categorical[key].Add(docID)
}

// addNumeric must be called with idx.mu held.
func (idx *MetadataIndex) addNumeric(field string, docID uint32, value int64) {
	if idx.numeric[field] == nil {
		idx.numeric[field] = bsi.NewBSI(bsi.Min64BitSigned, bsi.Max64BitSigned)
	}
	idx.numeric[field].SetValue(uint64(docID), value)
}

// Remove drops a document from every categorical and numeric field.
func (idx *MetadataIndex) Remove(docID uint32) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if !idx.allDocs.Contains(docID) {
		return
	}
	idx.allDocs.Remove(docID)

	for key, bitmap := range idx.categorical {
		bitmap.Remove(docID)
		if bitmap.IsEmpty() {
			delete(idx.categorical, key)
		}
	}
	for _, b := range idx.numeric {
		b.ClearValues(roaring.BitmapOf(docID))
	}
}

// Len returns the number of documents carrying metadata.
func (idx *MetadataIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return int(idx.allDocs.GetCardinality())
}

// Match returns the documents satisfying every filter (AND). With no
// filters every document with metadata matches. The returned bitmap is owned
// by the caller.
func (idx *MetadataIndex) Match(filters ...Filter) (*roaring.Bitmap, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(filters) == 0 {
		return idx.allDocs.Clone(), nil
	}
	return idx.matchGroup(&FilterGroup{Filters: filters, Logic: AND})
}

// MatchGroups returns the union (OR) of the groups' matches. Filters within a
// group are combined with the group's Logic.
func (idx *MetadataIndex) MatchGroups(groups ...*FilterGroup) (*roaring.Bitmap, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	result := roaring.New()
	for i, group := range groups {
		bitmap, err := idx.matchGroup(group)
		if err != nil {
			return nil, fmt.Errorf("error executing group %d: %w", i, err)
		}
		result.Or(bitmap)
	}
	return result, nil
}

// Exists returns the documents that have any value for field.
func (idx *MetadataIndex) Exists(field string) *roaring.Bitmap {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.existence(field)
}

// matchGroup must be called with idx.mu held (at least read lock).
func (idx *MetadataIndex) matchGroup(group *FilterGroup) (*roaring.Bitmap, error) {
	if len(group.Filters) == 0 {
		return idx.allDocs.Clone(), nil
	}

	var result *roaring.Bitmap
	for _, filter := range group.Filters {
		bitmap, err := idx.evaluate(filter)
		if err != nil {
			return nil, err
		}
		switch {
		case result == nil:
			result = bitmap
		case group.Logic == OR:
			result.Or(bitmap)
		default:
			result.And(bitmap)
		}
		if group.Logic != OR && result.IsEmpty() {
			return result, nil
		}
	}
	return result, nil
}

// evaluate must be called with idx.mu held (at least read lock).
func (idx *MetadataIndex) evaluate(filter Filter) (*roaring.Bitmap, error) {
	switch filter.Operator {
	case OpExists:
		return idx.existence(filter.Field), nil
	case OpNotExists:
		bitmap := idx.allDocs.Clone()
		bitmap.AndNot(idx.existence(filter.Field))
		return bitmap, nil
	}

	if b, ok := idx.numeric[filter.Field]; ok {
		return idx.queryNumeric(b, filter)
	}
	return idx.queryCategorical(filter)
}

// existence must be called with idx.mu held (at least read lock).
func (idx *MetadataIndex) existence(field string) *roaring.Bitmap {
	if b, ok := idx.numeric[field]; ok {
		return b.GetExistenceBitmap().Clone()
	}

	result := roaring.New()
	prefix := field + ":"
	for key, bitmap := range idx.categorical {
		if strings.HasPrefix(key, prefix) {
			result.Or(bitmap)
		}
	}
	return result
}

// queryCategorical must be called with idx.mu held (at least read lock).
func (idx *MetadataIndex) queryCategorical(filter Filter) (*roaring.Bitmap, error) {
	switch filter.Operator {
	case OpEqual, "":
		if bitmap, ok := idx.categorical[categoricalKey(filter.Field, filter.Value)]; ok {
			return bitmap.Clone(), nil
		}
		return roaring.New(), nil

	case OpNotEqual:
		result := idx.allDocs.Clone()
		if bitmap, ok := idx.categorical[categoricalKey(filter.Field, filter.Value)]; ok {
			result.AndNot(bitmap)
		}
		return result, nil

	case OpIn, OpNotIn:
		values, err := filterValues(filter)
		if err != nil {
			return nil, err
		}
		matched := roaring.New()
		for _, v := range values {
			if bitmap, ok := idx.categorical[categoricalKey(filter.Field, v)]; ok {
				matched.Or(bitmap)
			}
		}
		if filter.Operator == OpIn {
			return matched, nil
		}
		result := idx.allDocs.Clone()
		result.AndNot(matched)
		return result, nil

	default:
		return nil, fmt.Errorf("unsupported operator for categorical field %s: %s", filter.Field, filter.Operator)
	}
}

// queryNumeric must be called with idx.mu held (at least read lock).
func (idx *MetadataIndex) queryNumeric(b *bsi.BSI, filter Filter) (*roaring.Bitmap, error) {
	if filter.Operator == OpIn || filter.Operator == OpNotIn {
		values, err := filterValues(filter)
		if err != nil {
			return nil, err
		}
		matched := roaring.New()
		for _, v := range values {
			n, err := toInt64(v)
			if err != nil {
				return nil, err
			}
			matched.Or(b.CompareValue(0, bsi.EQ, n, 0, nil))
		}
		if filter.Operator == OpIn {
			return matched, nil
		}
		result := b.GetExistenceBitmap().Clone()
		result.AndNot(matched)
		return result, nil
	}

	value, err := toInt64(filter.Value)
	if err != nil {
		return nil, err
	}

	switch filter.Operator {
	case OpEqual, "":
		return b.CompareValue(0, bsi.EQ, value, 0, nil), nil
	case OpNotEqual:
		result := b.GetExistenceBitmap().Clone()
		result.AndNot(b.CompareValue(0, bsi.EQ, value, 0, nil))
		return result, nil
	case OpGreaterThan:
		return b.CompareValue(0, bsi.GT, value, 0, nil), nil
	case OpGreaterThanOrEqual:
		return b.CompareValue(0, bsi.GE, value, 0, nil), nil
	case OpLessThan:
		return b.CompareValue(0, bsi.LT, value, 0, nil), nil
	case OpLessThanOrEqual:
		return b.CompareValue(0, bsi.LE, value, 0, nil), nil
	case OpRange, OpNotRange:
		upper, err := toInt64(filter.Value2)
		if err != nil {
			return nil, err
		}
		inRange := b.CompareValue(0, bsi.RANGE, value, upper, nil)
		if filter.Operator == OpRange {
			return inRange, nil
		}
		result := b.GetExistenceBitmap().Clone()
		result.AndNot(inRange)
		return result, nil
	default:
		return nil, fmt.Errorf("unsupported operator for numeric field %s: %s", filter.Field, filter.Operator)
	}
}

func categoricalKey(field string, value interface{}) string {
	return fmt.Sprintf("%s:%v", field, value)
}

// filterValues unpacks the value list of an in / not_in filter.
func filterValues(filter Filter) ([]interface{}, error) {
	switch vals := filter.Value.(type) {
	case []interface{}:
		return vals, nil
	case []string:
		out := make([]interface{}, len(vals))
		for i, v := range vals {
			out[i] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("'%s' operator requires []string or []interface{} value", filter.Operator)
	}
}

// toInt64 converts a numeric filter value to the BSI representation.
func toInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		return int64(v * 100), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", value)
	}
}

// Operator represents a filter operation type
type Operator string

const (
	OpEqual    Operator = "eq"
	OpNotEqual Operator = "ne"

	OpGreaterThan        Operator = "gt"
	OpGreaterThanOrEqual Operator = "gte"
	OpLessThan           Operator = "lt"
	OpLessThanOrEqual    Operator = "lte"

	OpIn    Operator = "in"
	OpNotIn Operator = "not_in"

	// OpRange matches [Value, Value2]
	OpRange Operator = "range"
	// OpNotRange matches values outside [Value, Value2]
	OpNotRange Operator = "not_range"

	OpExists    Operator = "exists"
	OpNotExists Operator = "not_exists"
)

// Filter is a single predicate over one metadata field.
type Filter struct {
	Field    string
	Operator Operator
	Value    interface{}
	Value2   interface{} // upper bound for OpRange
}

// Eq creates an equality filter
func Eq(field string, value interface{}) Filter {
	return Filter{Field: field, Operator: OpEqual, Value: value}
}

// Ne creates a not-equal filter
func Ne(field string, value interface{}) Filter {
	return Filter{Field: field, Operator: OpNotEqual, Value: value}
}

// Gt creates a greater-than filter
func Gt(field string, value interface{}) Filter {
	return Filter{Field: field, Operator: OpGreaterThan, Value: value}
}

// Gte creates a greater-than-or-equal filter
func Gte(field string, value interface{}) Filter {
	return Filter{Field: field, Operator: OpGreaterThanOrEqual, Value: value}
}

// Lt creates a less-than filter
func Lt(field string, value interface{}) Filter {
	return Filter{Field: field, Operator: OpLessThan, Value: value}
}

// Lte creates a less-than-or-equal filter
func Lte(field string, value interface{}) Filter {
	return Filter{Field: field, Operator: OpLessThanOrEqual, Value: value}
}

// In creates an in-set filter
func In(field string, values ...interface{}) Filter {
	return Filter{Field: field, Operator: OpIn, Value: values}
}

// NotIn creates a not-in-set filter
func NotIn(field string, values ...interface{}) Filter {
	return Filter{Field: field, Operator: OpNotIn, Value: values}
}

// Range creates a range filter [min, max]
func Range(field string, min, max interface{}) Filter {
	return Filter{Field: field, Operator: OpRange, Value: min, Value2: max}
}

// Between is an alias for Range
func Between(field string, min, max interface{}) Filter {
	return Range(field, min, max)
}

// Exists matches documents with any value for field
func Exists(field string) Filter {
	return Filter{Field: field, Operator: OpExists}
}

// NotExists matches documents without a value for field
func NotExists(field string) Filter {
	return Filter{Field: field, Operator: OpNotExists}
}

// Not negates a filter by inverting its operator. Like the other negated
// operators, the result only matches documents that have the field.
func Not(filter Filter) Filter {
	switch filter.Operator {
	case OpEqual, "":
		filter.Operator = OpNotEqual
	case OpNotEqual:
		filter.Operator = OpEqual
	case OpGreaterThan:
		filter.Operator = OpLessThanOrEqual
	case OpGreaterThanOrEqual:
		filter.Operator = OpLessThan
	case OpLessThan:
		filter.Operator = OpGreaterThanOrEqual
	case OpLessThanOrEqual:
		filter.Operator = OpGreaterThan
	case OpIn:
		filter.Operator = OpNotIn
	case OpNotIn:
		filter.Operator = OpIn
	case OpExists:
		filter.Operator = OpNotExists
	case OpNotExists:
		filter.Operator = OpExists
	case OpRange:
		filter.Operator = OpNotRange
	case OpNotRange:
		filter.Operator = OpRange
	}
	return filter
}

// AnyOf is an alias for In
func AnyOf(field string, values ...interface{}) Filter {
	return In(field, values...)
}

// NoneOf is an alias for NotIn
func NoneOf(field string, values ...interface{}) Filter {
	return NotIn(field, values...)
}

// LogicOperator defines how filters within a group are combined
type LogicOperator string

const (
	AND LogicOperator = "AND"
	OR  LogicOperator = "OR"
)

// FilterGroup is a set of filters combined with Logic.
type FilterGroup struct {
	Filters []Filter
	Logic   LogicOperator
}

// MetadataFilterQueryBuilder builds OR-ed groups of AND-ed filters.
//
// Example:
//
//	q := NewMetadataFilterQuery().
//		Where(Eq("lang", "en"), Gte("year", 2020)).
//		Or(Eq("source", "curated")).
//		Query()
type MetadataFilterQueryBuilder struct {
	groups []*FilterGroup
}

// NewMetadataFilterQuery creates an empty builder.
func NewMetadataFilterQuery() *MetadataFilterQueryBuilder {
	return &MetadataFilterQueryBuilder{}
}

// Where starts a new AND group.
func (qb *MetadataFilterQueryBuilder) Where(filters ...Filter) *MetadataFilterQueryBuilder {
	if len(filters) > 0 {
		qb.groups = append(qb.groups, &FilterGroup{Filters: filters, Logic: AND})
	}
	return qb
}

// Or starts a new AND group that is OR-ed with the previous groups.
func (qb *MetadataFilterQueryBuilder) Or(filters ...Filter) *MetadataFilterQueryBuilder {
	return qb.Where(filters...)
}

// And appends filters to the last group.
func (qb *MetadataFilterQueryBuilder) And(filters ...Filter) *MetadataFilterQueryBuilder {
	if len(qb.groups) == 0 {
		return qb.Where(filters...)
	}
	last := qb.groups[len(qb.groups)-1]
	last.Filters = append(last.Filters, filters...)
	return qb
}

// Build returns the constructed filter groups.
func (qb *MetadataFilterQueryBuilder) Build() []*FilterGroup {
	return qb.groups
}

// Query wraps the groups in a FilterQuery usable as a classifier training filter.
func (qb *MetadataFilterQueryBuilder) Query() *FilterQuery {
	return NewFilterGroupQuery(qb.groups...)
}
