package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

const maxValueWidth = 80

// recordKinds names the key prefixes written by the repositories.
var recordKinds = map[string]string{
	"msg":      "MESSAGE",
	"msgidx":   "MESSAGE INDEX",
	"flag":     "VIEWER FLAGS",
	"tpl":      "TEMPLATE",
	"tplidx":   "TEMPLATE INDEX",
	"sess":     "SESSION",
	"sesscur":  "CURRENT SESSION",
	"sesshist": "SESSION HISTORY",
	"chat":     "CHAT MESSAGE",
	"att":      "ATTACHMENT",
}

func main() {
	dbPath := flag.String("db", "", "Path to the badger directory (BADGER_FILEPATH)")
	prefix := flag.String("prefix", "msg:", "Prefix to scan, empty for every key")
	limit := flag.Int("limit", 200, "Maximum number of rows")
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("-db is required: an in-memory store cannot be inspected")
	}
	db, err := badger.Open(badger.DefaultOptions(*dbPath).WithReadOnly(true).WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Size", "Value"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	rows := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes) && rows < *limit; it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))
			err := item.Value(func(v []byte) error {
				table.Append([]string{key, kindOf(key), strconv.Itoa(len(v)), preview(key, v)})
				return nil
			})
			if err != nil {
				fmt.Printf("Error reading key %s: %v\n", key, err)
				continue
			}
			rows++
		}
		return nil
	})
	if err != nil {
		log.Fatal("Error while scanning: ", err)
	}

	table.Render()
	fmt.Printf("\n%d row(s) under prefix %q\n", rows, *prefix)
}

func kindOf(key string) string {
	head, _, _ := strings.Cut(key, ":")
	if kind, ok := recordKinds[head]; ok {
		return kind
	}
	return "UNKNOWN"
}

// preview keeps attachment bytes out of the terminal.
func preview(key string, value []byte) string {
	if strings.HasPrefix(key, "att:") {
		return "<binary attachment>"
	}
	s := string(value)
	if len(s) > maxValueWidth {
		return s[:maxValueWidth] + "..."
	}
	return s
}
