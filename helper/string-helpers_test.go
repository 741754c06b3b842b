package helper

import (
	"testing"
	"time"

	"github.com/payfraud/riskpipe/logger"
)

var log = logger.NewLogger("riskpipe", "info", true)

func TestTokensToOrderedMap(t *testing.T) {
	o := TokensToOrderedMap("txn_id:txn_id,amount_cents:amount_cents")
	if o.Len() != 2 {
		t.Fatal("expected 2 entries in ordered map, got ", o.Len())
	}
	v, ok := o.Get("txn_id")
	if !ok || v.(string) != "txn_id" {
		t.Fatal("expected txn_id key to map to txn_id, got ", v)
	}
}

func TestCsvToStringSliceTrimSpaces(t *testing.T) {
	s := CsvToStringSliceTrimSpaces(" day, merchant_id ,gmv_cents")
	expected := []string{"day", "merchant_id", "gmv_cents"}
	if len(s) != len(expected) {
		t.Fatal("unexpected slice length: ", len(s))
	}
	for i := range expected {
		if s[i] != expected[i] {
			t.Fatalf("expected %v at index %v, got %v", expected[i], i, s[i])
		}
	}
}

func TestStringSliceToOrderedMap(t *testing.T) {
	o := StringSliceToOrderedMap([]string{"a", "b"})
	keys := OrderedMapKeysToStringSlice(log, o)
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatal("unexpected keys: ", keys)
	}
}

func TestGetStringFromInterface(t *testing.T) {
	if GetStringFromInterfaceUseUtcTime(log, int64(150000)) != "150000" {
		t.Fatal("int64 conversion failed")
	}
	if GetStringFromInterfaceUseUtcTime(log, 0.85) != "0.85" {
		t.Fatal("float64 conversion failed")
	}
	if GetStringFromInterfaceUseUtcTime(log, nil) != "" {
		t.Fatal("nil conversion failed")
	}
	tm := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if GetStringFromInterfaceUseUtcTime(log, tm) != "20260102T030405+0000" {
		t.Fatal("time conversion failed: ", GetStringFromInterfaceUseUtcTime(log, tm))
	}
}

func TestOrderedMapValuesToStringSlice(t *testing.T) {
	o := TokensToOrderedMap("k1:v1,k2:v2")
	l := make([]string, 2)
	idx := 0
	OrderedMapValuesToStringSlice(log, o, &l, &idx)
	if l[0] != "v1" || l[1] != "v2" || idx != 2 {
		t.Fatal("unexpected values: ", l)
	}
}

func TestValidateStructIsPopulated(t *testing.T) {
	type testStruct struct {
		Name string `errorTxt:"connection name" mandatory:"yes"`
		Dsn  string `errorTxt:"dsn" mandatory:"yes"`
		Note string `errorTxt:"note"`
	}
	err := ValidateStructIsPopulated(&testStruct{Name: "oltp"})
	if err == nil {
		t.Fatal("expected error for unset mandatory field")
	}
	if err.Error() != "please supply values for dsn" {
		t.Fatal("unexpected error text: ", err.Error())
	}
	err = ValidateStructIsPopulated(&testStruct{Name: "oltp", Dsn: "postgres://x"})
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
}

func TestSplit(t *testing.T) {
	a, b := Split("postgres://user@host", "://")
	if a != "postgres" || b != "user@host" {
		t.Fatal("unexpected split: ", a, b)
	}
	a, b = SplitRight("schema.table.col", ".")
	if a != "schema.table" || b != "col" {
		t.Fatal("unexpected split right: ", a, b)
	}
}
