package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/bhataakib02/bpa-breed-recognition-sub001/pkg/classify"
	"github.com/bhataakib02/bpa-breed-recognition-sub001/pkg/quality"
)

var predictCmd = &cobra.Command{
	Use:   "predict <image file>",
	Short: "Classify the breed in a photo without registering",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "read image")
		}

		analyzer := quality.NewWithConfig(quality.Config{
			BlurByteFloor:       cfg.Quality.BlurByteFloor,
			BlurMinWidth:        cfg.Quality.BlurMinWidth,
			BlurMinHeight:       cfg.Quality.BlurMinHeight,
			DarkBrightnessFloor: cfg.Quality.DarkBrightnessFloor,
		})
		verdict, err := analyzer.Analyze(data)
		if err != nil {
			return err
		}
		if verdict.BlurSuspected {
			fmt.Println("warning: image may be blurred")
		}
		if verdict.DarkSuspected {
			fmt.Println("warning: image is too dark")
		}

		opts := []classify.Option{
			classify.WithBaseURL(cfg.Classify.BaseURL),
			classify.WithTimeout(time.Duration(cfg.Classify.TimeoutSecs) * time.Second),
		}
		if len(cfg.Classify.BreedCandidates) > 0 {
			opts = append(opts, classify.WithBreedCandidates(cfg.Classify.BreedCandidates))
		}
		client := classify.NewClient(cfg.Session.Token, opts...)

		result, err := client.Classify(cmd.Context(), data, verdict)
		if err != nil {
			return err
		}

		fmt.Printf("species: %s (%.0f%%)\n", result.Species, result.SpeciesConfidence*100)
		for _, p := range result.Predictions {
			fmt.Printf("  %-24s %.1f%%\n", p.Breed, p.Confidence*100)
		}
		if result.IsCrossbreed {
			fmt.Println("likely crossbreed")
		}
		if result.Degraded {
			fmt.Println("note: prediction backend unavailable, placeholder result")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(predictCmd)
}
