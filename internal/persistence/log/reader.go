package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"

	"topper.blackblock.rocks/internal/stats/custom"
)

// ReadAudit decodes every audit file under dataDir in chronological order. Lines that fail
// to decode are skipped.
func ReadAudit(dataDir string) ([]custom.AuditEntry, error) {
	files, err := filepath.Glob(filepath.Join(dataDir, auditDir, auditPrefix+"*"+auditSuffix))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	var out []custom.AuditEntry
	for _, path := range files {
		if err := readAuditFile(path, func(e custom.AuditEntry) { out = append(out, e) }); err != nil {
			return out, err
		}
	}
	return out, nil
}

func readAuditFile(path string, fn func(custom.AuditEntry)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var e custom.AuditEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		fn(e)
	}
	return sc.Err()
}
