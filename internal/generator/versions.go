package generator

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"golang.org/x/sync/singleflight"

	"github.com/m3uproxy/m3uproxy/internal/domain"
)

// Publisher writes a proxy's generated M3U/XMLTV artifacts to a directory
// as timestamped, immutable versions, atomically repointing "latest"
// symlinks at the newest version and pruning old ones beyond the proxy's
// configured retention.
//
// Concurrent regeneration requests for the same proxy are coalesced with
// singleflight: if a schedule tick and a manual "regenerate now" race,
// only one actually re-renders and writes, and both callers see its
// result.
type Publisher struct {
	Dir   string
	group singleflight.Group
}

// NewPublisher creates a Publisher writing artifacts under dir, which must
// already exist.
func NewPublisher(dir string) *Publisher {
	return &Publisher{Dir: dir}
}

// Published describes the artifact paths written by one Publish call.
type Published struct {
	M3UPath    string
	XMLTVPath  string
	M3ULatest  string
	XMLTVLatest string
	Version    string
}

// Publish renders channels/programs for slug and writes both artifacts as
// a new version, then repoints the "<slug>.{m3u,xml}" latest symlinks at
// them and prunes versions beyond keep. now is passed in by the caller
// (the orchestrator) rather than read from time.Now() here so a run's
// version stamp matches its StartedAt.
func (p *Publisher) Publish(slug string, channels []domain.Channel, programs []domain.EpgProgram, xTvgURL string, streamURL func(domain.Channel) string, keep int, now time.Time) (*Published, error) {
	key := slug
	v, err, _ := p.group.Do(key, func() (any, error) {
		return p.publishOnce(slug, channels, programs, xTvgURL, streamURL, keep, now)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Published), nil
}

func (p *Publisher) publishOnce(slug string, channels []domain.Channel, programs []domain.EpgProgram, xTvgURL string, streamURL func(domain.Channel) string, keep int, now time.Time) (*Published, error) {
	version := now.UTC().Format("20060102T150405Z")

	var m3uBuf bytes.Buffer
	if err := WriteM3U(&m3uBuf, channels, xTvgURL, streamURL); err != nil {
		return nil, fmt.Errorf("render m3u: %w", err)
	}
	var xmlBuf bytes.Buffer
	if err := WriteXMLTV(&xmlBuf, channels, programs); err != nil {
		return nil, fmt.Errorf("render xmltv: %w", err)
	}

	m3uPath := filepath.Join(p.Dir, fmt.Sprintf("%s-%s.m3u", slug, version))
	xmlPath := filepath.Join(p.Dir, fmt.Sprintf("%s-%s.xml", slug, version))

	if err := renameio.WriteFile(m3uPath, m3uBuf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("write m3u version: %w", err)
	}
	if err := renameio.WriteFile(xmlPath, xmlBuf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("write xmltv version: %w", err)
	}

	m3uLatest := filepath.Join(p.Dir, slug+".m3u")
	xmlLatest := filepath.Join(p.Dir, slug+".xml")
	if err := relink(m3uLatest, filepath.Base(m3uPath)); err != nil {
		return nil, fmt.Errorf("relink m3u latest: %w", err)
	}
	if err := relink(xmlLatest, filepath.Base(xmlPath)); err != nil {
		return nil, fmt.Errorf("relink xmltv latest: %w", err)
	}

	if err := p.prune(slug, "m3u", keep); err != nil {
		return nil, fmt.Errorf("prune old m3u versions: %w", err)
	}
	if err := p.prune(slug, "xml", keep); err != nil {
		return nil, fmt.Errorf("prune old xmltv versions: %w", err)
	}

	return &Published{
		M3UPath:     m3uPath,
		XMLTVPath:   xmlPath,
		M3ULatest:   m3uLatest,
		XMLTVLatest: xmlLatest,
		Version:     version,
	}, nil
}

// relink atomically repoints a symlink at target, replacing any previous
// symlink or file at path.
func relink(path, target string) error {
	tmp := path + ".tmp-symlink"
	_ = os.Remove(tmp)
	if err := os.Symlink(target, tmp); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// prune removes all but the newest `keep` versioned files for slug/ext,
// leaving the latest symlink's target untouched as long as it's within
// the kept set (it always is, since it was just written).
func (p *Publisher) prune(slug, ext string, keep int) error {
	if keep <= 0 {
		return nil
	}
	prefix := slug + "-"
	suffix := "." + ext

	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		return err
	}

	var versions []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
			continue
		}
		versions = append(versions, name)
	}
	sort.Strings(versions) // timestamp-named, so lexical order is chronological

	if len(versions) <= keep {
		return nil
	}
	for _, name := range versions[:len(versions)-keep] {
		if err := os.Remove(filepath.Join(p.Dir, name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
