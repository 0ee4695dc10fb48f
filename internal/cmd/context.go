package cmd

import (
	"io"

	"github.com/jimezsa/jobparser/internal/config"
	"github.com/jimezsa/jobparser/internal/ui"
	"github.com/rs/zerolog"
)

type Context struct {
	In         io.Reader
	Out        io.Writer
	Err        io.Writer
	UI         *ui.UI
	Config     config.Config
	ConfigDir  string
	Logger     zerolog.Logger
	Verbose    bool
	JSONOutput bool
	PlainText  bool
	Version    string
	ColorMode  ui.ColorMode
}
