package main

import (
	"context"
	"fmt"
	"log"
	"os"

	fontconvert "github.com/dahisea/Font-Convert-Action"
	"github.com/dahisea/Font-Convert-Action/font"
	"github.com/tdewolff/argp"
)

var (
	Info    *log.Logger
	Warning *log.Logger
	Error   *log.Logger
)

type Main struct {
	URL          string `name:"url" desc:"Source font file URL"`
	OutputFormat string `name:"output-format" desc:"Target format, one of: ttf, otf, woff, woff2"`
	OutputName   string `name:"output-name" desc:"Output base filename without extension"`
	Verbose      bool   `short:"v" desc:"Verbose logging"`
}

func main() {
	Info = log.New(os.Stderr, "", log.LstdFlags)
	Warning = log.New(os.Stderr, "WARNING: ", 0)
	Error = log.New(os.Stderr, "ERROR: ", 0)

	cmd := argp.NewCmd(&Main{}, "Download a font file and convert it to another container format")
	cmd.Parse()
}

func (cmd *Main) Run() error {
	if cmd.URL == "" {
		return fmt.Errorf("--url must be set")
	} else if cmd.OutputFormat == "" {
		return fmt.Errorf("--output-format must be set")
	}
	format, err := font.ParseFormat(cmd.OutputFormat)
	if err != nil {
		return err
	}

	converter := fontconvert.New(fontconvert.Options{
		Info:    Info,
		Warning: Warning,
		Verbose: cmd.Verbose,
	})
	result, err := converter.Run(context.Background(), fontconvert.Request{
		URL:    cmd.URL,
		Format: format,
		Name:   cmd.OutputName,
	})
	if err != nil {
		Error.Println(err)
		os.Exit(1)
	}

	// CI annotation lines for the calling workflow
	fmt.Printf("::set-output name=converted_file::%s\n", result.Path)
	fmt.Printf("::set-output name=input_size::%d\n", result.InputSize)
	fmt.Printf("::set-output name=output_size::%d\n", result.OutputSize)
	return nil
}
