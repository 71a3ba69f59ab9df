package daemon

import (
	"encoding/json"
	"net/http"
	"path/filepath"
)

func decodeJSON(resp *http.Response, v interface{}) error {
	return json.NewDecoder(resp.Body).Decode(v)
}

func filepathBase(path string) string {
	return filepath.Base(path)
}
