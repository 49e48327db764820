// Package cleaning implements the offline clean-up job for the lists and
// users documents: back both files up, drop malformed and duplicate records,
// write the cleaned documents back and report what changed.
package cleaning

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"todo-api/domain"
	"todo-api/storage"
)

const (
	backupLayout    = "20060102_150405"
	maxBackupSuffix = 100
)

// Options configures a cleaning run.
type Options struct {
	DataFile  string
	UsersFile string
	BackupDir string
	// DryRun cleans and reports without taking a backup or writing anything.
	DryRun bool
}

// Pipeline runs the cleaning job. It is not safe to run two pipelines on the
// same files at once.
type Pipeline struct {
	opts  Options
	lists *storage.FileStore
	users *storage.UserStore
	now   func() time.Time
	log   *log.Logger
}

// New creates a Pipeline for opts.
func New(opts Options, logger *log.Logger) (*Pipeline, error) {
	if opts.DataFile == "" || opts.UsersFile == "" {
		return nil, errors.New("cleaning: data and users files are required")
	}
	if opts.BackupDir == "" && !opts.DryRun {
		return nil, errors.New("cleaning: backup directory is required")
	}
	if filepath.Base(opts.DataFile) == filepath.Base(opts.UsersFile) {
		return nil, fmt.Errorf("cleaning: data and users files share the base name %q", filepath.Base(opts.DataFile))
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Pipeline{
		opts:  opts,
		lists: storage.NewFileStore(opts.DataFile, logger),
		users: storage.NewUserStore(opts.UsersFile, nil, logger),
		now:   time.Now,
		log:   logger,
	}, nil
}

type rawDocuments struct {
	lists []any
	users map[string]any
}

// Run executes backup, load, clean, persist and report in that order. Any
// failure before persisting leaves both files untouched.
func (p *Pipeline) Run() (Report, error) {
	started := p.now()
	p.log.WithFields(log.Fields{"data_file": p.opts.DataFile, "users_file": p.opts.UsersFile, "dry_run": p.opts.DryRun}).Info("cleaning pipeline started")

	report := Report{Timestamp: domain.FormatTimestamp(started), DryRun: p.opts.DryRun}
	if !p.opts.DryRun {
		path, err := p.backup(started)
		if err != nil {
			return Report{}, err
		}
		report.BackupPath = path
	}

	raw, err := p.load()
	if err != nil {
		return Report{}, err
	}

	r := rules{log: p.log}
	lists := r.lists(raw.lists)
	users := r.users(raw.users)

	report.Lists = newCounts(len(raw.lists), len(lists))
	report.Users = newCounts(len(raw.users), len(users))
	report.Tasks = newCounts(countRawTasks(raw.lists), countTasks(lists))

	if !p.opts.DryRun {
		if err := p.lists.Write(domain.Document{Lists: lists}); err != nil {
			return Report{}, fmt.Errorf("persist lists: %w", err)
		}
		if err := p.users.Write(users); err != nil {
			return Report{}, fmt.Errorf("persist users: %w", err)
		}
	}

	p.log.WithFields(log.Fields{
		"lists_removed": report.Lists.Removed,
		"tasks_removed": report.Tasks.Removed,
		"users_removed": report.Users.Removed,
		"backup_path":   report.BackupPath,
	}).Info("cleaning pipeline completed")
	return report, nil
}

// backup copies both source files into a fresh timestamped directory and
// syncs them to disk. Missing source files are skipped.
func (p *Pipeline) backup(at time.Time) (string, error) {
	dir, err := p.backupDir(at)
	if err != nil {
		return "", err
	}
	for _, src := range []string{p.opts.DataFile, p.opts.UsersFile} {
		dst := filepath.Join(dir, filepath.Base(src))
		copied, err := copyFile(src, dst)
		if err != nil {
			return "", &domain.StorageError{Op: "backup", Path: src, Err: err}
		}
		if !copied {
			p.log.WithField("path", src).Warn("source file missing, nothing to back up")
			continue
		}
		p.log.WithFields(log.Fields{"source": src, "backup": dst}).Info("backed up")
	}
	if err := syncDir(dir); err != nil {
		return "", &domain.StorageError{Op: "backup", Path: dir, Err: err}
	}
	return dir, nil
}

// backupDir creates a directory no earlier run has used. Runs within the same
// second get a numeric suffix.
func (p *Pipeline) backupDir(at time.Time) (string, error) {
	if err := os.MkdirAll(p.opts.BackupDir, 0o755); err != nil {
		return "", &domain.StorageError{Op: "backup", Path: p.opts.BackupDir, Err: err}
	}
	base := filepath.Join(p.opts.BackupDir, "backup_"+at.Format(backupLayout))
	dir := base
	for n := 1; n <= maxBackupSuffix; n++ {
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", &domain.StorageError{Op: "backup", Path: dir, Err: err}
		}
		dir = fmt.Sprintf("%s_%d", base, n)
	}
	return "", &domain.StorageError{Op: "backup", Path: base, Err: fs.ErrExist}
}

func copyFile(src, dst string) (bool, error) {
	in, err := os.Open(src)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return false, err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return false, err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return false, err
	}
	return true, out.Close()
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

// load reads both documents untyped so the rules see every record as stored.
// Missing files load as empty; malformed files abort the run.
func (p *Pipeline) load() (rawDocuments, error) {
	var docs rawDocuments

	var listsDoc any
	found, err := readJSON(p.opts.DataFile, &listsDoc)
	if err != nil {
		return docs, err
	}
	if !found {
		p.log.WithField("path", p.opts.DataFile).Warn("data file not found, treating as empty")
	}
	switch v := listsDoc.(type) {
	case nil:
	case map[string]any:
		if raw, ok := v["lists"]; ok && raw != nil {
			lists, ok := raw.([]any)
			if !ok {
				return docs, &domain.StorageError{Op: "load", Path: p.opts.DataFile, Err: errors.New(`"lists" is not an array`)}
			}
			docs.lists = lists
		}
	case []any:
		docs.lists = v
	default:
		return docs, &domain.StorageError{Op: "load", Path: p.opts.DataFile, Err: errors.New("unexpected document shape")}
	}

	var usersDoc any
	found, err = readJSON(p.opts.UsersFile, &usersDoc)
	if err != nil {
		return docs, err
	}
	if !found {
		p.log.WithField("path", p.opts.UsersFile).Warn("users file not found, treating as empty")
	}
	switch v := usersDoc.(type) {
	case nil:
		docs.users = map[string]any{}
	case map[string]any:
		docs.users = v
	default:
		return docs, &domain.StorageError{Op: "load", Path: p.opts.UsersFile, Err: errors.New("unexpected document shape")}
	}
	return docs, nil
}

func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, &domain.StorageError{Op: "load", Path: path, Err: err}
	}
	if err := sonic.ConfigStd.Unmarshal(data, v); err != nil {
		return true, &domain.StorageError{Op: "load", Path: path, Err: err}
	}
	return true, nil
}

func countRawTasks(lists []any) int {
	n := 0
	for _, item := range lists {
		obj, _ := item.(map[string]any)
		n += len(arrayValue(obj["tasks"]))
	}
	return n
}

func countTasks(lists []domain.List) int {
	n := 0
	for _, l := range lists {
		n += len(l.Tasks)
	}
	return n
}
