package infra

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"go.uber.org/zap"
	"gopkg.in/ini.v1"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
)

const desktopEntrySection = "Desktop Entry"

// iconSizes are searched largest first so cropping has the most pixels.
var iconSizes = []string{"512x512", "256x256", "128x128", "96x96", "64x64", "48x48", "32x32", "scalable"}

// DesktopEntryResolver implements domain.PackageResolver with freedesktop
// desktop entries. A process without a matching entry has no package.
type DesktopEntryResolver struct {
	appDirs  []string
	dataDirs []string
	logger   *zap.Logger
}

// NewDesktopEntryResolver searches the XDG application and data directories.
func NewDesktopEntryResolver(logger *zap.Logger) *DesktopEntryResolver {
	dataDirs := append([]string{xdg.DataHome}, xdg.DataDirs...)
	return NewDesktopEntryResolverWithDirs(xdg.ApplicationDirs, dataDirs, logger)
}

// NewDesktopEntryResolverWithDirs creates a resolver over custom directories (for testing).
func NewDesktopEntryResolverWithDirs(appDirs, dataDirs []string, logger *zap.Logger) *DesktopEntryResolver {
	return &DesktopEntryResolver{
		appDirs:  appDirs,
		dataDirs: dataDirs,
		logger:   logger,
	}
}

type desktopEntry struct {
	path     string
	name     string
	icon     string
	exec     string
	wmClass  string
	fileStem string
}

// Resolve finds the desktop entry of the process.
func (r *DesktopEntryResolver) Resolve(ctx context.Context, identity domain.ProcessIdentity) (*domain.PackageInfo, error) {
	for _, dir := range r.appDirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		matches, err := filepath.Glob(filepath.Join(dir, "*.desktop"))
		if err != nil {
			continue
		}
		for _, path := range matches {
			entry, ok := r.load(path)
			if !ok || !entry.matches(identity) {
				continue
			}
			info := &domain.PackageInfo{
				DisplayName: entry.name,
				IconPath:    r.findIcon(entry.icon),
			}
			r.logger.Debug("resolved desktop entry",
				zap.String("process", identity.Name),
				zap.String("entry", entry.path))
			return info, nil
		}
	}
	return nil, domain.ErrNoPackage
}

func (r *DesktopEntryResolver) load(path string) (*desktopEntry, bool) {
	// Exec lines may legitimately contain '#' and ';'.
	f, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment: true,
		Loose:               true,
	}, path)
	if err != nil {
		r.logger.Debug("skipping unreadable desktop entry", zap.String("path", path), zap.Error(err))
		return nil, false
	}
	sec, err := f.GetSection(desktopEntrySection)
	if err != nil {
		return nil, false
	}
	if t := sec.Key("Type").String(); t != "" && t != "Application" {
		return nil, false
	}
	name := sec.Key("Name").String()
	if name == "" {
		return nil, false
	}
	return &desktopEntry{
		path:     path,
		name:     name,
		icon:     sec.Key("Icon").String(),
		exec:     sec.Key("Exec").String(),
		wmClass:  sec.Key("StartupWMClass").String(),
		fileStem: strings.TrimSuffix(filepath.Base(path), ".desktop"),
	}, true
}

func (e *desktopEntry) matches(identity domain.ProcessIdentity) bool {
	name := identity.Name
	if name == "" {
		return false
	}
	if e.wmClass != "" && strings.EqualFold(e.wmClass, name) {
		return true
	}
	if bin := execBinary(e.exec); bin != "" {
		if bin == name {
			return true
		}
		if identity.Exe != "" && bin == filepath.Base(identity.Exe) {
			return true
		}
	}
	return strings.EqualFold(e.fileStem, name)
}

// execBinary returns the base name of the program an Exec line runs,
// skipping an "env VAR=value" prefix.
func execBinary(exec string) string {
	fields := strings.Fields(exec)
	i := 0
	if i < len(fields) && filepath.Base(fields[i]) == "env" {
		i++
		for i < len(fields) && strings.Contains(fields[i], "=") {
			i++
		}
	}
	if i >= len(fields) {
		return ""
	}
	return filepath.Base(strings.Trim(fields[i], `"`))
}

// findIcon resolves an Icon key to a file: absolute paths are used as
// they are, theme names are searched in hicolor and pixmaps.
func (r *DesktopEntryResolver) findIcon(icon string) string {
	if icon == "" {
		return ""
	}
	if filepath.IsAbs(icon) {
		if fileExists(icon) {
			return icon
		}
		return ""
	}

	for _, base := range r.dataDirs {
		for _, size := range iconSizes {
			for _, ext := range []string{".png", ".svg"} {
				p := filepath.Join(base, "icons", "hicolor", size, "apps", icon+ext)
				if fileExists(p) {
					return p
				}
			}
		}
	}
	for _, base := range r.dataDirs {
		for _, ext := range []string{".png", ".svg", ".xpm"} {
			p := filepath.Join(base, "pixmaps", icon+ext)
			if fileExists(p) {
				return p
			}
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Ensure DesktopEntryResolver implements domain.PackageResolver.
var _ domain.PackageResolver = (*DesktopEntryResolver)(nil)
