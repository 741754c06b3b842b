package stream

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	om "github.com/cevaris/ordered_map"
	h "github.com/payfraud/riskpipe/helper"
	"github.com/payfraud/riskpipe/logger"
)

// Record is used to communicate data between components.
type Record struct {
	data map[string]interface{} // raw data values, which can represent null database values as nil interfaces.
}

// NewRecord creates a new Record and returns it by value as we expect these records to go over
// channels by value too. The backing map is shared so CopyTo() must be used where a component
// mutates a record it did not create.
func NewRecord() Record {
	return Record{
		data: make(map[string]interface{}),
	}
}

// NewNilRecord returns the zero Record used to signal end of stream handling in tests.
func NewNilRecord() Record {
	return Record{}
}

func (sr Record) RecordIsNil() bool {
	if len(sr.data) == 0 && sr.data == nil { // if the internal map has not been initialised...
		return true // the Record is nil.
	} else {
		return false // the Record contains stuff.
	}
}

func (sr Record) SetData(name string, value interface{}) {
	sr.data[name] = value
}

func (sr Record) GetData(name string) interface{} {
	val, ok := sr.data[name]
	if !ok {
		panic(fmt.Sprintf("Invalid key name %q supplied while trying to fetch value from record: %v", name, sr.data))
	}
	return val
}

// DataExists reports whether the named field is present in the record.
func (sr Record) DataExists(name string) bool {
	_, ok := sr.data[name]
	return ok
}

func (sr Record) GetDataMap() map[string]interface{} {
	return sr.data
}

// GetDataAsStringUseUtcTime will convert interface{} value to a string for the purposes of
// grouping and comparison. Times will be converted to UTC for string comparison!
func (sr Record) GetDataAsStringUseUtcTime(log logger.Logger, name string) (retval string) {
	return sr.getStringFromInterface(log, name, true)
}

// GetDataAsStringPreserveTimeZone will convert interface{} value to a string.
// Times will be in local time.
func (sr Record) GetDataAsStringPreserveTimeZone(log logger.Logger, name string) (retval string) {
	return sr.getStringFromInterface(log, name, false)
}

func (sr Record) getStringFromInterface(log logger.Logger, name string, useUTC bool) (retval string) {
	v, ok := sr.data[name]
	if !ok {
		panic(fmt.Sprintf("unexpected field %q does not exist in the input stream (bad pipe definition?)", name))
	}
	return h.GetStringFromInterface(log, v, useUTC)
}

// GetDataAsInt64 fetches the named field and converts it to int64.
// Database drivers return integer columns as int64, but text protocols can hand back
// strings or byte slices, so those are parsed here too.
func (sr Record) GetDataAsInt64(log logger.Logger, name string) int64 {
	v := sr.GetData(name)
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float64:
		return int64(x)
	case []uint8:
		i, err := strconv.ParseInt(string(x), 10, 64)
		if err != nil {
			log.Panic("unable to parse field ", name, " as int64: ", err)
		}
		return i
	case string:
		i, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			log.Panic("unable to parse field ", name, " as int64: ", err)
		}
		return i
	case nil:
		return 0
	default:
		log.Panic("unhandled type for field ", name, " while fetching int64 from record: ", fmt.Sprintf("%T", v))
	}
	return 0
}

// GetDataAsFloat64 fetches the named field and converts it to float64.
func (sr Record) GetDataAsFloat64(log logger.Logger, name string) float64 {
	v := sr.GetData(name)
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int64:
		return float64(x)
	case int:
		return float64(x)
	case []uint8:
		f, err := strconv.ParseFloat(string(x), 64)
		if err != nil {
			log.Panic("unable to parse field ", name, " as float64: ", err)
		}
		return f
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			log.Panic("unable to parse field ", name, " as float64: ", err)
		}
		return f
	case nil:
		return 0
	default:
		log.Panic("unhandled type for field ", name, " while fetching float64 from record: ", fmt.Sprintf("%T", v))
	}
	return 0
}

// GetDataAsTimeUtc fetches the named field as a time.Time in UTC.
func (sr Record) GetDataAsTimeUtc(log logger.Logger, name string) time.Time {
	v := sr.GetData(name)
	switch x := v.(type) {
	case time.Time:
		return x.UTC()
	case string:
		t, err := time.Parse(time.RFC3339, x)
		if err != nil {
			log.Panic("unable to parse field ", name, " as time: ", err)
		}
		return t.UTC()
	default:
		log.Panic("unhandled type for field ", name, " while fetching time from record: ", fmt.Sprintf("%T", v))
	}
	return time.Time{}
}

// GetDataKeysAsSlice builds a slice of strings containing the values found in sr.data for each of the supplied
// keys in slice keys.
func (sr Record) GetDataKeysAsSlice(log logger.Logger, keys []string) []string {
	retval := make([]string, 0) // no max capacity so this allows the caller to reuse keys multiple times.
	for _, k := range keys {
		retval = append(retval, sr.GetDataAsStringPreserveTimeZone(log, k))
	}
	return retval
}

func (sr Record) GetDataLen() int {
	return len(sr.data)
}

// GetSortedDataMapKeys will return a slice of the keys found in map sr.data.
func (sr Record) GetSortedDataMapKeys() []string {
	retval := make([]string, 0)
	for k := range sr.data {
		retval = append(retval, k)
	}
	sort.Slice(retval, func(i, j int) bool {
		return retval[i] < retval[j]
	})
	return retval
}

func (sr Record) CopyTo(t Record) {
	for k, v := range sr.data {
		t.SetData(k, v)
	}
}

// GetDataValuesByKeys builds a list of data values found in the supplied Record using the keys supplied.
// Output: this function modifies the supplied list 'l' and 'idx' by reference.
// 'idx' is the last index in the slice 'l' that is populated.
// The map's keys are field names in sr.data, while its values are database table column names.
func (sr Record) GetDataValuesByKeys(log logger.Logger, keys *om.OrderedMap, l *[]interface{}, idx *int) {
	iter := keys.IterFunc()
	if iter == nil {
		log.Panic("GetDataValuesByKeys() failed to get iterFunc.")
	}
	for kv, ok := iter(); ok; kv, ok = iter() {
		key := kv.Key.(string)
		(*l)[*idx] = sr.GetData(key) // get value from rec using the key in recMapKeys
		*idx++                       // save the location in the slice for the caller
	}
}

// GetJson returns the JSON representation of sr.data using the supplied keys to fetch the data.
func (sr Record) GetJson(log logger.Logger, keys []string) string {
	out := make([]string, len(keys), len(keys))
	for idx, key := range keys { // for each key...
		jsonValue, err := json.Marshal(sr.GetDataAsStringPreserveTimeZone(log, key))
		if err != nil {
			log.Panic("Error marshalling the value of key '", key, "' to JSON")
		}
		out[idx] = fmt.Sprintf("%q: %s", key, string(jsonValue))
	}
	return fmt.Sprintf("{%v}", strings.Join(out, ", "))
}

// MergeDataStreams will combine records from s1 into a new record, followed by s2 into the new record before
// returning it. You can supply a nil s2 to create a copy of s1 that is returned.
// If allowOverwrite is false, an error is returned if a field in s2 already exists in s1.
func MergeDataStreams(s1 Record, s2 Record, allowOverwrite bool) (Record, error) {
	retval := NewRecord()
	for k, v := range s1.GetDataMap() { // for each key:value in the 1st source...
		retval.data[k] = v // save it to the output
	}
	if !s2.RecordIsNil() { // if s2 is not empty...
		for k, v := range s2.GetDataMap() { // for each key:value in the 2nd source...
			_, ok := retval.data[k]
			if ok && !allowOverwrite { // if the key already exists...
				return Record{}, fmt.Errorf("field %v exists in stream record", k)
			} else { // else update the target map...
				retval.data[k] = v // save the source key:value
			}
		}
	}
	return retval, nil
}
