package toolhandlers

import (
	"encoding/json"
	"os"
	"path/filepath"
)

func marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func dirSize(root string) int64 {
	var total int64
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total
}
