package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"os"
	"strings"

	"github.com/rahul/webpilot/internal/browser"
	"github.com/rahul/webpilot/internal/resolver"
	"github.com/rahul/webpilot/internal/schemas"
	"github.com/spf13/cobra"
)

func newResolveCmd(a *app) *cobra.Command {
	var htmlFile, imageFile string

	cmd := &cobra.Command{
		Use:   "resolve description...",
		Short: "Resolve an element description against a saved page or screenshot",
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(*cobra.Command, []string) error {
			return a.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			desc := strings.Join(args, " ")
			var res schemas.Resolution

			switch {
			case htmlFile != "":
				page, err := browser.LoadStaticPage(htmlFile)
				if err != nil {
					return fmt.Errorf("load page: %w", err)
				}
				var shot []byte
				if imageFile != "" {
					if shot, err = os.ReadFile(imageFile); err != nil {
						return fmt.Errorf("read screenshot: %w", err)
					}
				}
				res = resolver.New(a.logger).Resolve(cmd.Context(), capturedPage{page, shot}, desc)
			case imageFile != "":
				data, err := os.ReadFile(imageFile)
				if err != nil {
					return fmt.Errorf("read screenshot: %w", err)
				}
				img, err := png.Decode(bytes.NewReader(data))
				if err != nil {
					return fmt.Errorf("decode screenshot: %w", err)
				}
				res = resolver.ResolveImage(img, desc)
			default:
				return errors.New("one of --html or --image is required")
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&htmlFile, "html", "", "saved HTML document")
	cmd.Flags().StringVar(&imageFile, "image", "", "PNG screenshot for the vision layer")
	return cmd
}

// capturedPage serves a saved screenshot to the vision layer of a static page.
type capturedPage struct {
	*browser.StaticPage
	shot []byte
}

func (p capturedPage) Capture(context.Context) ([]byte, error) {
	if p.shot == nil {
		return nil, browser.ErrStaticPage
	}
	return p.shot, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
