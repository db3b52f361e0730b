package cli

import (
	"fmt"
	"sync"

	"golang.design/x/clipboard"
)

// Clipboard receives text copied by the copy command.
type Clipboard interface {
	Write(text string) error
}

// SystemClipboard writes to the OS clipboard. Initialization is deferred to
// the first copy so headless runs never touch the display server.
type SystemClipboard struct {
	once    sync.Once
	initErr error
}

func (c *SystemClipboard) Write(text string) error {
	c.once.Do(func() {
		c.initErr = clipboard.Init()
	})
	if c.initErr != nil {
		return fmt.Errorf("failed to initialize clipboard: %w", c.initErr)
	}
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}
