// ABOUTME: Directory-backed frame sources and device enumeration
// ABOUTME: Treats image directories as selectable cameras for video mode
package capture

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Device describes a selectable video input
type Device struct {
	ID    string // directory path
	Label string
}

// ListDevices enumerates video inputs under root. Each subdirectory holding
// images is a device; root itself counts when it holds images directly.
func ListDevices(root string) ([]Device, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices in %s: %w", root, err)
	}

	var devices []Device
	if len(imageFiles(root)) > 0 {
		devices = append(devices, Device{ID: root, Label: filepath.Base(root)})
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		if len(imageFiles(dir)) == 0 {
			continue
		}
		devices = append(devices, Device{ID: dir, Label: entry.Name()})
	}

	for i := range devices {
		if devices[i].Label == "" || devices[i].Label == "." {
			devices[i].Label = fmt.Sprintf("Camera %d", i+1)
		}
	}

	return devices, nil
}

// DirSource cycles through the images of a directory
type DirSource struct {
	dir   string
	files []string
	next  int
	mu    sync.Mutex
}

// NewDirSource opens a directory of .jpg/.jpeg/.png images
func NewDirSource(dir string) (*DirSource, error) {
	files := imageFiles(dir)
	if len(files) == 0 {
		return nil, fmt.Errorf("no images found in %s", dir)
	}
	return &DirSource{dir: dir, files: files}, nil
}

// Name returns the directory name
func (s *DirSource) Name() string {
	return filepath.Base(s.dir)
}

// Next decodes the next image, wrapping around at the end
func (s *DirSource) Next() (image.Image, error) {
	s.mu.Lock()
	path := s.files[s.next]
	s.next = (s.next + 1) % len(s.files)
	s.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// Close releases the source
func (s *DirSource) Close() error {
	return nil
}

// imageFiles returns the sorted image paths directly inside dir
func imageFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png":
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files
}
