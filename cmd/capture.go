package main

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	fieldcapture "github.com/bhataakib02/bpa-breed-recognition-sub001"
	"github.com/bhataakib02/bpa-breed-recognition-sub001/internal/pipeline"
	"github.com/bhataakib02/bpa-breed-recognition-sub001/internal/record"
	"github.com/bhataakib02/bpa-breed-recognition-sub001/internal/utils"
	"github.com/bhataakib02/bpa-breed-recognition-sub001/pkg/age"
	"github.com/bhataakib02/bpa-breed-recognition-sub001/pkg/geo"
)

var (
	captureOwner      string
	captureLocation   string
	captureEarTag     string
	captureGender     string
	captureAge        string
	captureWeight     float64
	captureHealth     string
	captureVacc       string
	captureNotes      string
	captureLat        float64
	captureLng        float64
	captureHasCoords  bool
	captureNoPredict  bool
)

var captureCmd = &cobra.Command{
	Use:   "capture [image files or directory]",
	Short: "Register an animal from one or more photos",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var opts []fieldcapture.Option
		if captureHasCoords {
			opts = append(opts, fieldcapture.WithGeoProvider(geo.Static(captureLat, captureLng, 0)))
		}

		app, err := fieldcapture.New(cfg, currentSession(), opts...)
		if err != nil {
			return err
		}
		defer app.Close()

		files, err := collectImageFiles(args)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return eris.New("no image files found in arguments")
		}

		for _, path := range files {
			verdict, err := app.AddImageFile(ctx, path)
			if err != nil {
				zap.L().Warn("skipping unreadable image", zap.String("path", path), zap.Error(err))
				continue
			}
			fmt.Printf("added %s (%dx%d, %s)\n", path, verdict.Width, verdict.Height,
				utils.FormatFileSize(int64(verdict.ByteSize)))
		}
		for _, warning := range app.Warnings() {
			fmt.Println("warning:", warning)
		}

		draft := app.Draft()
		draft.OwnerName = captureOwner
		draft.Location = captureLocation
		draft.EarTag = captureEarTag
		draft.Notes = captureNotes
		draft.WeightKG = captureWeight
		if captureGender != "" {
			draft.Gender = record.Gender(captureGender)
		}
		if captureHealth != "" {
			draft.HealthStatus = record.HealthStatus(captureHealth)
		}
		if captureVacc != "" {
			draft.VaccinationStatus = record.VaccinationStatus(captureVacc)
		}
		if captureAge != "" {
			parsed, err := age.Parse(captureAge)
			if err != nil {
				return eris.Wrapf(err, "invalid --age %q", captureAge)
			}
			draft.Age = parsed
			fmt.Println("age:", parsed.Format())
		}

		if captureHasCoords {
			if reading := app.CaptureLocation(ctx); reading != nil {
				fmt.Printf("location: %.5f, %.5f\n", reading.Latitude, reading.Longitude)
			}
		}

		if !captureNoPredict {
			result, err := app.Predict(ctx)
			if err != nil {
				zap.L().Warn("classification unavailable", zap.Error(err))
			} else {
				top := result.Top()
				fmt.Printf("predicted breed: %s (%.0f%%)\n", top.Breed, top.Confidence*100)
				if result.Degraded {
					fmt.Println("note: prediction backend unavailable, placeholder result")
				}
			}
		}

		outcome, err := app.Save(ctx)
		if err != nil {
			var valErr *record.ValidationError
			if errors.As(err, &valErr) {
				return eris.Errorf("record incomplete, missing: %v", valErr.Missing)
			}
			return err
		}

		switch outcome.State {
		case pipeline.StateSubmitted:
			fmt.Printf("registered: %s\n", outcome.Saved.ID)
		case pipeline.StateQueued:
			fmt.Printf("offline, queued locally as %s (run 'fieldcapture sync' when online)\n",
				outcome.Queued.LocalID)
		}
		return nil
	},
}

// collectImageFiles expands directory arguments into their image files.
func collectImageFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		if utils.FileExists(arg) {
			files = append(files, arg)
			continue
		}
		found, err := utils.ListImageFiles(arg)
		if err != nil {
			return nil, eris.Wrapf(err, "list images in %s", arg)
		}
		files = append(files, found...)
	}
	return files, nil
}

func init() {
	captureCmd.Flags().StringVar(&captureOwner, "owner", "", "owner name (required)")
	captureCmd.Flags().StringVar(&captureLocation, "location", "", "village or tehsil (required)")
	captureCmd.Flags().StringVar(&captureEarTag, "ear-tag", "", "ear tag identifier")
	captureCmd.Flags().StringVar(&captureGender, "gender", "female", "female or male")
	captureCmd.Flags().StringVar(&captureAge, "age", "", "age, e.g. '2yr 6 months' or total months")
	captureCmd.Flags().Float64Var(&captureWeight, "weight", 0, "weight in kg")
	captureCmd.Flags().StringVar(&captureHealth, "health", "", "healthy, sick, injured or pregnant")
	captureCmd.Flags().StringVar(&captureVacc, "vaccination", "", "unknown, up_to_date, due or overdue")
	captureCmd.Flags().StringVar(&captureNotes, "notes", "", "free-form notes")
	captureCmd.Flags().Float64Var(&captureLat, "lat", 0, "latitude of the capture site")
	captureCmd.Flags().Float64Var(&captureLng, "lng", 0, "longitude of the capture site")
	captureCmd.Flags().BoolVar(&captureNoPredict, "no-predict", false, "skip breed classification")
	captureCmd.PreRun = func(cmd *cobra.Command, args []string) {
		captureHasCoords = cmd.Flags().Changed("lat") && cmd.Flags().Changed("lng")
	}
	rootCmd.AddCommand(captureCmd)
}
