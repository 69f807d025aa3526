package bag

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Report is the outcome of Verify.
type Report struct {
	Files  int
	Octets int64
	// Problems is empty for a valid bag.
	Problems []string
}

// Valid reports whether no problems were found.
func (r *Report) Valid() bool {
	return len(r.Problems) == 0
}

// Err returns ErrManifestMismatch with the problems attached, or nil.
func (r *Report) Err() error {
	if r.Valid() {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrManifestMismatch, strings.Join(r.Problems, "; "))
}

// Verify checks a bag on disk: the declaration, both SHA-256 manifests,
// Payload-Oxum, and that every payload file is listed in the manifest.
// I/O failures are returned as errors; content problems go in the Report.
func Verify(dir string) (*Report, error) {
	fsys := os.DirFS(dir)
	rep := &Report{}

	decl, err := readTagFile(fsys, DeclarationFile)
	if err != nil {
		return nil, err
	}
	if decl["BagIt-Version"] == "" {
		rep.Problems = append(rep.Problems, "bagit.txt has no BagIt-Version")
	}

	manifest, err := readManifest(fsys, ManifestFile)
	if err != nil {
		return nil, err
	}
	for _, p := range sortedKeys(manifest) {
		if !strings.HasPrefix(p, PayloadDir+"/") {
			rep.Problems = append(rep.Problems, fmt.Sprintf("%s: outside payload directory", p))
			continue
		}
		sum, n, err := hashFile(fsys, p)
		if err != nil {
			if os.IsNotExist(err) {
				rep.Problems = append(rep.Problems, fmt.Sprintf("%s: missing", p))
				continue
			}
			return nil, err
		}
		if sum != manifest[p] {
			rep.Problems = append(rep.Problems, fmt.Sprintf("%s: checksum mismatch", p))
		}
		rep.Files++
		rep.Octets += n
	}

	onDisk, err := doublestar.Glob(fsys, PayloadDir+"/**")
	if err != nil {
		return nil, fmt.Errorf("list payload: %w", err)
	}
	for _, p := range onDisk {
		info, err := fs.Stat(fsys, p)
		if err != nil || info.IsDir() {
			continue
		}
		if _, ok := manifest[p]; !ok {
			rep.Problems = append(rep.Problems, fmt.Sprintf("%s: not in manifest", p))
		}
	}

	if info, err := readTagFile(fsys, InfoFile); err == nil {
		if oxum := info[FieldPayloadOxum]; oxum != "" {
			if want := fmt.Sprintf("%d.%d", rep.Octets, rep.Files); oxum != want {
				rep.Problems = append(rep.Problems, fmt.Sprintf("Payload-Oxum %s does not match %s", oxum, want))
			}
		}
	}

	tags, err := readManifest(fsys, TagManifestFile)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	for _, p := range sortedKeys(tags) {
		sum, _, err := hashFile(fsys, p)
		if err != nil {
			rep.Problems = append(rep.Problems, fmt.Sprintf("%s: missing", p))
			continue
		}
		if sum != tags[p] {
			rep.Problems = append(rep.Problems, fmt.Sprintf("%s: checksum mismatch", p))
		}
	}
	return rep, nil
}

// OxumOf parses a Payload-Oxum value into octets and file count.
func OxumOf(v string) (octets int64, files int, err error) {
	o, f, ok := strings.Cut(v, ".")
	if !ok {
		return 0, 0, fmt.Errorf("malformed Payload-Oxum %q", v)
	}
	if octets, err = strconv.ParseInt(o, 10, 64); err != nil {
		return 0, 0, fmt.Errorf("malformed Payload-Oxum %q: %w", v, err)
	}
	if files, err = strconv.Atoi(f); err != nil {
		return 0, 0, fmt.Errorf("malformed Payload-Oxum %q: %w", v, err)
	}
	return octets, files, nil
}

func readTagFile(fsys fs.FS, name string) (map[string]string, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	defer f.Close()

	out := make(map[string]string)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		k, v, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out, sc.Err()
}

func readManifest(fsys fs.FS, name string) (map[string]string, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[string]string)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		sum, p, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("%s: malformed line %q", name, line)
		}
		p = path.Clean(decodePath(strings.TrimLeft(p, " *")))
		out[p] = strings.ToLower(sum)
	}
	return out, sc.Err()
}

func hashFile(fsys fs.FS, name string) (string, int64, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
