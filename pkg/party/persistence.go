package party

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// paths centralizes the on-disk layout a PartyEngine owns exclusively, per
// the coordination subsystem's "ShareFile and BackupFile directory are
// owned exclusively by their PartyEngine" resource policy.
type paths struct {
	dataDir  string
	partyID  int
	clockNow func() time.Time
}

func newPaths(dataDir string, partyID int, clockNow func() time.Time) paths {
	if clockNow == nil {
		clockNow = time.Now
	}
	return paths{dataDir: dataDir, partyID: partyID, clockNow: clockNow}
}

func (p paths) shareFile() string {
	return filepath.Join(p.dataDir, "Persistence", fmt.Sprintf("Transactions-P%d.data", p.partyID))
}

func (p paths) backupDir() string {
	return filepath.Join(p.dataDir, "Backup", fmt.Sprintf("%d", p.partyID))
}

func (p paths) backupFile(ts time.Time) string {
	stamp := ts.Format("2006-01-02-15-04-05")
	return filepath.Join(p.backupDir(), fmt.Sprintf("Transactions-P%d.data.%s", p.partyID, stamp))
}

func (p paths) playerDataDir() string {
	return filepath.Join(p.dataDir, "Player-Data")
}

func (p paths) partyCertFile() string {
	return filepath.Join(p.playerDataDir(), fmt.Sprintf("P%d.pem", p.partyID))
}

func (p paths) clientCertFile(clientID int) string {
	return filepath.Join(p.playerDataDir(), fmt.Sprintf("C%d.pem", clientID))
}

func (p paths) lockFile() string {
	return filepath.Join(p.dataDir, ".party.lock")
}

// backupShareFile copies the current ShareFile to a fresh timestamped
// backup path. If the ShareFile does not yet exist, it reports firstRun and
// an empty backup path: there is nothing to back up, and a failed session
// should simply delete whatever partial file it created.
func (p paths) backupShareFile() (backupPath string, firstRun bool, err error) {
	share := p.shareFile()
	src, err := os.Open(share)
	if os.IsNotExist(err) {
		return "", true, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("opening share file: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(p.backupDir(), 0o755); err != nil {
		return "", false, fmt.Errorf("creating backup dir: %w", err)
	}
	dest := p.backupFile(p.clockNow())
	dst, err := os.Create(dest)
	if err != nil {
		return "", false, fmt.Errorf("creating backup file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", false, fmt.Errorf("copying share file to backup: %w", err)
	}
	return dest, false, nil
}

// restore rolls the ShareFile back to the state captured by backupShareFile:
// copying the backup back over the share file, or deleting the share file
// entirely when the session was a first run.
func (p paths) restore(backupPath string, firstRun bool) error {
	share := p.shareFile()
	if firstRun {
		if err := os.Remove(share); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing first-run share file: %w", err)
		}
		return nil
	}

	src, err := os.Open(backupPath)
	if err != nil {
		return fmt.Errorf("opening backup file: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(share), 0o755); err != nil {
		return fmt.Errorf("creating persistence dir: %w", err)
	}
	dst, err := os.Create(share)
	if err != nil {
		return fmt.Errorf("recreating share file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("restoring share file from backup: %w", err)
	}
	return nil
}

func (p paths) shareFileExists() bool {
	_, err := os.Stat(p.shareFile())
	return err == nil
}

// clearStaleClientMaterial removes stale client certs (C*.pem) and MP-SPDZ's
// own per-client socket descriptor files (*.0) from the player data
// directory before a new session installs fresh material.
func (p paths) clearStaleClientMaterial() error {
	dir := p.playerDataDir()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading player data dir: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".0") || (strings.HasPrefix(name, "C") && strings.HasSuffix(name, ".pem")) {
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				return fmt.Errorf("removing stale file %s: %w", name, err)
			}
		}
	}
	return nil
}

// installClientCert writes the client's certificate into the player data
// directory so the MPC run can authenticate the client's socket.
func (p paths) installClientCert(clientID int, certPEM []byte) error {
	dir := p.playerDataDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating player data dir: %w", err)
	}
	return os.WriteFile(p.clientCertFile(clientID), certPEM, 0o644)
}
