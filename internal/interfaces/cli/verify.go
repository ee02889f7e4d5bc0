package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/medcheck/MedCheck-Engine/pkg/client"
	verdicttypes "github.com/medcheck/MedCheck-Engine/pkg/types/verification"
)

var imageContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// NewVerifyCmd creates the verify command.
func NewVerifyCmd() *cobra.Command {
	var (
		name        string
		description string
		batch       string
		imagePaths  []string
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a product against the alert corpus",
		Example: `  medcheck verify --name "Amoxil 500mg" --batch B123
  medcheck verify --name "Coartem 80/480mg" --image front.jpg --image back.jpg`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := getCLIContext(cmd)
			if err != nil {
				return err
			}
			if name == "" && len(imagePaths) == 0 {
				return fmt.Errorf("provide --name or at least one --image")
			}

			images, err := loadImages(imagePaths)
			if err != nil {
				return err
			}

			verdict, err := cc.client.Verify(cmd.Context(), client.VerifyRequest{
				ProductName: name,
				Description: description,
				BatchNumber: batch,
				Images:      images,
			})
			if err != nil {
				return err
			}

			if cc.opts.OutputFormat == "json" {
				return printJSON(cmd.OutOrStdout(), verdict)
			}
			printVerdict(cmd, verdict)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "product name as printed on the packaging")
	cmd.Flags().StringVarP(&description, "description", "d", "", "free-form product description")
	cmd.Flags().StringVarP(&batch, "batch", "b", "", "batch number from the packaging")
	cmd.Flags().StringArrayVarP(&imagePaths, "image", "i", nil, "packaging photo (repeatable, max 5)")
	return cmd
}

// loadImages reads each path and infers the content type from the extension.
func loadImages(paths []string) ([]client.Image, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	images := make([]client.Image, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read image %s: %w", p, err)
		}
		contentType := imageContentTypes[strings.ToLower(filepath.Ext(p))]
		if contentType == "" {
			return nil, fmt.Errorf("unsupported image type %s (want jpg, png or webp)", p)
		}
		images = append(images, client.Image{
			Name:        filepath.Base(p),
			ContentType: contentType,
			Data:        data,
		})
	}
	return images, nil
}

func riskColor(level verdicttypes.RiskLevel) *color.Color {
	switch level {
	case verdicttypes.RiskCritical, verdicttypes.RiskHigh:
		return color.New(color.FgRed, color.Bold)
	case verdicttypes.RiskMedium:
		return color.New(color.FgYellow)
	case verdicttypes.RiskLow:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}

func printVerdict(cmd *cobra.Command, v *verdicttypes.Verdict) {
	out := cmd.OutOrStdout()

	riskColor(v.RiskLevel).Fprintf(out, "Risk: %s (confidence %.0f%%)\n", v.RiskLevel, v.Confidence)
	fmt.Fprintf(out, "%s\n", v.Summary)

	if v.MatchedAlert != nil {
		fmt.Fprintf(out, "\nMatched alert: %s\n", v.MatchedAlert.Title)
		if v.MatchedAlert.URL != "" {
			fmt.Fprintf(out, "  %s\n", v.MatchedAlert.URL)
		}
	}
	if len(v.RiskFactors) > 0 {
		fmt.Fprintln(out, "\nRisk factors:")
		for _, f := range v.RiskFactors {
			fmt.Fprintf(out, "  - %s\n", f)
		}
	}
	if len(v.Recommendations) > 0 {
		fmt.Fprintln(out, "\nRecommendations:")
		for _, r := range v.Recommendations {
			fmt.Fprintf(out, "  - %s\n", r)
		}
	}
	if v.Degraded {
		color.New(color.FgYellow).Fprintf(out, "\nNote: verdict produced with reduced signals (%s)\n", v.DegradedReason)
	}
}
