package engine

import (
	"encoding/json"
	"os"

	"github.com/dabozzhub/pbj/internal/common"
)

// CacheFileName is the hash-store document in the project root.
const CacheFileName = ".pbj_cache.json"

// HashStore keeps content fingerprints of every file the engine has compiled,
// plus the header closure each source had at its last successful compile.
// It is loaded once per invocation and written exactly once after the compile
// phase. Only the coordinating goroutine touches it: workers hand results back
// instead of writing here, so no locking is needed.
//
// A missing or malformed store file is not an error: the engine starts empty
// and rebuilds everything, which is always a safe decision.
type HashStore struct {
	fileName string

	files map[string]common.MD5            // path (or meta:/rcc: key) -> fingerprint
	deps  map[string]map[string]common.MD5 // source -> header -> fingerprint at last compile
}

// hashStoreDisk is the JSON document shape, fingerprints as hex strings.
type hashStoreDisk struct {
	Files map[string]string            `json:"files"`
	Deps  map[string]map[string]string `json:"deps"`
}

func MakeHashStore(fileName string) *HashStore {
	store := &HashStore{
		fileName: fileName,
		files:    make(map[string]common.MD5),
		deps:     make(map[string]map[string]common.MD5),
	}
	store.load()
	return store
}

func (store *HashStore) load() {
	contents, err := os.ReadFile(store.fileName)
	if err != nil {
		return
	}

	var disk hashStoreDisk
	if err := json.Unmarshal(contents, &disk); err != nil {
		return
	}

	for path, hex := range disk.Files {
		var h common.MD5
		h.FromHexString(hex)
		if !h.IsEmpty() {
			store.files[path] = h
		}
	}
	for source, headers := range disk.Deps {
		depHashes := make(map[string]common.MD5, len(headers))
		for header, hex := range headers {
			var h common.MD5
			h.FromHexString(hex)
			if !h.IsEmpty() {
				depHashes[header] = h
			}
		}
		store.deps[source] = depHashes
	}
}

// Save writes the store atomically: a temp file in place, then rename.
// A reader never observes a half-written document; at worst a crash leaves
// a stray temp file and the old store intact.
func (store *HashStore) Save() error {
	disk := hashStoreDisk{
		Files: make(map[string]string, len(store.files)),
		Deps:  make(map[string]map[string]string, len(store.deps)),
	}
	for path, h := range store.files {
		disk.Files[path] = h.ToHexString()
	}
	for source, headers := range store.deps {
		hexHashes := make(map[string]string, len(headers))
		for header, h := range headers {
			hexHashes[header] = h.ToHexString()
		}
		disk.Deps[source] = hexHashes
	}

	contents, err := json.MarshalIndent(&disk, "", "  ")
	if err != nil {
		return err
	}

	tmpFile, err := common.OpenTempFile(store.fileName)
	if err != nil {
		return err
	}
	if _, err = tmpFile.Write(contents); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpFile.Name())
		return err
	}
	if err = tmpFile.Close(); err != nil {
		return err
	}
	return os.Rename(tmpFile.Name(), store.fileName)
}

func (store *HashStore) GetFileHash(path string) (common.MD5, bool) {
	h, exists := store.files[path]
	return h, exists
}

func (store *HashStore) SetFileHash(path string, h common.MD5) {
	store.files[path] = h
}

func (store *HashStore) GetDeps(source string) map[string]common.MD5 {
	return store.deps[source]
}

func (store *HashStore) SetDeps(source string, depHashes map[string]common.MD5) {
	store.deps[source] = depHashes
}

func (store *HashStore) FileName() string {
	return store.fileName
}
