package components

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/payfraud/riskpipe/stream"
	"github.com/sirupsen/logrus"
)

func TestCsvFileInput(t *testing.T) {
	log := logrus.New()
	fileName := filepath.Join(t.TempDir(), "txns.csv")
	data := "txn_id,amount_cents,status\n" +
		"t1,100,captured\n" +
		"t2,250,failed\n"
	if err := os.WriteFile(fileName, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	outputChan, _ := NewCsvFileInput(&CsvFileInputConfig{
		Log:      log,
		Name:     "Test CsvFileInput",
		FileName: fileName,
	})
	rows := make([]stream.Record, 0, 2)
	for rec := range outputChan {
		rows = append(rows, rec)
	}
	if len(rows) != 2 {
		t.Fatal("expected 2 rows; got ", len(rows))
	}
	if rows[0].GetData("txn_id").(string) != "t1" || rows[0].GetData("amount_cents").(string) != "100" {
		t.Fatal("unexpected first row: ", rows[0].GetDataMap())
	}
	if rows[1].GetData("status").(string) != "failed" {
		t.Fatal("unexpected second row: ", rows[1].GetDataMap())
	}
}

func TestCsvFileInputMissingFile(t *testing.T) {
	log := logrus.New()
	panicChan := make(chan interface{}, 1)
	NewCsvFileInput(&CsvFileInputConfig{
		Log:      log,
		Name:     "Test CsvFileInput missing file",
		FileName: filepath.Join(t.TempDir(), "nope.csv"),
		PanicHandlerFn: func() {
			panicChan <- recover()
		},
	})
	if r := <-panicChan; r == nil {
		t.Fatal("expected a panic for a missing file")
	}
}
