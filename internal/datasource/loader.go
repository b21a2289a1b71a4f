package datasource

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	logx "konan/pkg/logx"
)

// DefaultSample is the per-file row limit used when Options.Partial is set
// without an explicit Sample.
const DefaultSample = 10000

type Options struct {
	Partial bool
	Sample  int
}

func (o Options) limit() int {
	if !o.Partial {
		return 0
	}
	if o.Sample <= 0 {
		return DefaultSample
	}
	return o.Sample
}

// Loader reads files or directories of files into a Table.
type Loader struct {
	fs   afero.Fs
	opts Options
	log  logx.Logger
}

func NewLoader(fs afero.Fs, opts Options, log logx.Logger) *Loader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Loader{fs: fs, opts: opts, log: log.With(logx.String("comp", "datasource"))}
}

// Fs returns the filesystem the loader reads from.
func (l *Loader) Fs() afero.Fs { return l.fs }

// Load reads path. A file is decoded by extension. A directory is read one
// level deep in lexical order; files that cannot be decoded are skipped
// and the rest are concatenated with Append.
func (l *Loader) Load(path string) (Table, error) {
	info, err := l.fs.Stat(path)
	if err != nil {
		return Table{}, fmt.Errorf("load %s: %w", path, err)
	}
	if !info.IsDir() {
		return l.LoadFile(path)
	}
	return l.loadDir(path)
}

func (l *Loader) LoadFile(path string) (Table, error) {
	read, err := readerFor(path)
	if err != nil {
		return Table{}, err
	}
	f, err := l.fs.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return read(f, path, l.opts.limit())
}

func (l *Loader) loadDir(dir string) (Table, error) {
	infos, err := afero.ReadDir(l.fs, dir)
	if err != nil {
		return Table{}, fmt.Errorf("read dir %s: %w", dir, err)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })

	var out Table
	read := 0
	for _, fi := range infos {
		if fi.IsDir() {
			continue
		}
		p := filepath.Join(dir, fi.Name())
		t, err := l.LoadFile(p)
		if err != nil {
			l.log.Debug("skipping file", logx.String("path", p), logx.Err(err))
			continue
		}
		out = out.Append(t)
		read++
	}
	l.log.Debug("directory loaded",
		logx.String("path", dir),
		logx.Int("files", read),
		logx.Int("rows", out.Len()),
	)
	return out, nil
}
