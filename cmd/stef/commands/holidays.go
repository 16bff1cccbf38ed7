package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/features"
	"github.com/lf-energy-projects-renovation-state/openstef/pkg/config"
	"github.com/lf-energy-projects-renovation-state/openstef/pkg/httputil"
	"github.com/lf-energy-projects-renovation-state/openstef/pkg/logger"
)

var holidaysCmd = &cobra.Command{
	Use:   "holidays [file|url ...]",
	Short: "휴일/브릿지 데이 및 피처 확인",
	Long: `휴일 CSV(date,name[,region])를 읽어 휴일, 감지된 브릿지 데이,
생성되는 피처 이름을 출력합니다.

인자가 없으면 HOLIDAY_FILES 를 사용합니다.

Example:
  go run ./cmd/stef holidays configs/holidays_nl.csv
  go run ./cmd/stef holidays https://example.org/holidays.csv`,
	RunE: runHolidays,
}

var holidaysYear int

func init() {
	rootCmd.AddCommand(holidaysCmd)

	holidaysCmd.Flags().IntVar(&holidaysYear, "year", 0, "특정 연도만 출력")
}

func runHolidays(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	sources := args
	if len(sources) == 0 {
		sources = cfg.HolidayFiles
	}
	if len(sources) == 0 {
		return fmt.Errorf("no holiday files given (args or HOLIDAY_FILES)")
	}

	holidays, err := loadHolidays(context.Background(), httputil.New(cfg, log), sources)
	if err != nil {
		return err
	}

	var national []features.Holiday
	for _, h := range holidays {
		if h.Kind != features.KindSchool {
			national = append(national, h)
		}
	}

	PrintDoubleSeparator()
	fmt.Fprintln(out, "  Holidays")
	PrintSeparator()
	days := newTable("DATE", "WEEKDAY", "NAME", "KIND")
	for _, h := range holidays {
		if holidaysYear != 0 && h.Date.Year != holidaysYear {
			continue
		}
		days.add(h.Date.String(), h.Date.Weekday().String(), h.Name, h.Kind)
	}
	days.print()

	fmt.Fprintln(out)
	bridges := newTable("BRIDGE DAY", "WEEKDAY", "HOLIDAY")
	for _, b := range features.BridgeDays(national) {
		if holidaysYear != 0 && b.Day.Year != holidaysYear {
			continue
		}
		bridges.add(b.Day.String(), b.Day.Weekday().String(), b.Holiday.Name)
	}
	bridges.print()

	names := features.HolidayFunctions(holidays).Names()
	sort.Strings(names)
	fmt.Fprintln(out)
	PrintInfo(fmt.Sprintf("%d feature functions", len(names)))
	for _, n := range names {
		fmt.Fprintf(out, "   • %s\n", n)
	}
	return nil
}
