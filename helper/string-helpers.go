package helper

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	om "github.com/cevaris/ordered_map"
	"github.com/payfraud/riskpipe/constants"
	"github.com/payfraud/riskpipe/logger"
)

// TokensToOrderedMap converts a string of the form 'k1:v1,k2:v2' into an ordered map
// and returns a pointer to it.
// 1) Split on comma to find each key:value pair.
// 2) Split on colon to separate the key from the value.
func TokensToOrderedMap(s string) *om.OrderedMap {
	o := om.NewOrderedMap()
	tokens := strings.Split(s, ",")
	if len(tokens) > 0 { // if there is a key pair...
		for idx := range tokens {
			x := strings.Split(tokens[idx], ":")
			if len(x) >= 2 { // if there is a key:value...
				o.Set(x[0], x[1]) // set key, value
			}
		}
	}
	return o
}

// StringSliceToOrderedMap adds each value in s to an ordered map with key and value set to the value in s.
func StringSliceToOrderedMap(s []string) *om.OrderedMap {
	retval := om.NewOrderedMap()
	for _, v := range s {
		retval.Set(v, v)
	}
	return retval
}

// CsvToStringSliceTrimSpaces converts a string of the form 'f1,f2,f3...' into a slice of string values.
// 1) Split on comma.
// 2) Remove leading and trailing spaces.
func CsvToStringSliceTrimSpaces(s string) []string {
	tokens := strings.Split(s, ",")
	for x := range tokens {
		tokens[x] = strings.TrimSpace(tokens[x])
	}
	return tokens
}

// StringsToCsv joins the strings by ","
func StringsToCsv(s []string) string {
	return strings.Join(s, ",")
}

// GetStringFromInterfaceUseUtcTime will convert interface{} value to a string for the purposes of
// grouping and comparison. Times will be converted to UTC for string comparison!
func GetStringFromInterfaceUseUtcTime(log logger.Logger, input interface{}) (retval string) {
	return GetStringFromInterface(log, input, true)
}

// GetStringFromInterfacePreserveTimeZone will convert interface{} value to a string.
// Times will be in local time.
func GetStringFromInterfacePreserveTimeZone(log logger.Logger, input interface{}) (retval string) {
	return GetStringFromInterface(log, input, false)
}

// GetStringFromInterface will convert interface{} value to a string.
// Optionally return Times in UTC.
func GetStringFromInterface(log logger.Logger, input interface{}, useUTC bool) (retval string) {
	switch v := input.(type) {
	case int, int16, int32, int64, int8, uint8:
		retval = fmt.Sprintf("%d", v)
	case string:
		retval = v
	case float32:
		retval = strconv.FormatFloat(float64(v), 'f', -1, 32) // use 'f' to convert float to string without an exponent i.e. preserve all decimal points.
	case float64:
		retval = strconv.FormatFloat(v, 'f', -1, 64) // use 'f' to convert float to string without an exponent i.e. preserve all decimal points.
	case time.Time:
		if useUTC { // if caller requests UTC conversion...
			retval = v.UTC().Format(constants.TimeFormatYearSecondsTZ)
		} else { // else output Local time...
			retval = v.Format(constants.TimeFormatYearSecondsTZ)
		}
	case []uint8:
		retval = string(v)
	case bool:
		retval = fmt.Sprintf("%v", v)
	case nil:
		retval = ""
	default:
		log.Panic("unhandled type while fetching string from interface: type = ", reflect.TypeOf(input), "; value = ", input)
	}
	return
}

// OrderedMapValuesToStringSlice builds a list of values found in ordered map 'o' supplied as input.
// Output - this function modifies the supplied list 'l' and 'idx' by reference.
func OrderedMapValuesToStringSlice(log logger.Logger, o *om.OrderedMap, l *[]string, idx *int) {
	iter := o.IterFunc()
	if iter == nil {
		log.Panic("Failed to get iterFunc in OrderedMapValuesToStringSlice()")
	}
	for kv, ok := iter(); ok; kv, ok = iter() {
		(*l)[*idx] = kv.Value.(string)
		*idx++
	}
}

// OrderedMapKeysToStringSlice returns the keys of ordered map 'o' in map order.
func OrderedMapKeysToStringSlice(log logger.Logger, o *om.OrderedMap) []string {
	retval := make([]string, 0, o.Len())
	iter := o.IterFunc()
	if iter == nil {
		log.Panic("Failed to get iterFunc in OrderedMapKeysToStringSlice()")
	}
	for kv, ok := iter(); ok; kv, ok = iter() {
		retval = append(retval, kv.Key.(string))
	}
	return retval
}

// Split maybe s is of the form t c u.
// If so, return t, u.
// If not, return s, "".
func Split(s string, c string) (string, string) {
	i := strings.Index(s, c)
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i+len(c):]
}

// SplitRight splits s on the last occurrence of c.
func SplitRight(s string, c string) (string, string) {
	i := strings.LastIndex(s, c)
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i+len(c):]
}
