package backtest

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"
)

var ledgerHeader = []string{
	"index",
	"interval_start",
	"interval_end",
	"price",
	"curtailment_mw",
	"action",
	"charge_mw",
	"discharge_mw",
	"curtailment_uptake_mw",
	"energy_in_mwh",
	"energy_out_mwh",
	"level_start",
	"level_end",
	"stored",
	"withdrawn",
	"charging_cost",
	"discharging_revenue",
	"variable_cost",
	"curtailment_credit",
	"pnl",
	"cum_pnl",
}

func WriteLedgerCSV(path string, ledger []LedgerRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := WriteLedger(f, ledger); err != nil {
		return err
	}
	return f.Close()
}

// WriteLedger writes the ledger as CSV with a header row.
func WriteLedger(out io.Writer, ledger []LedgerRow) error {
	w := csv.NewWriter(out)
	if err := w.Write(ledgerHeader); err != nil {
		return err
	}

	for _, r := range ledger {
		row := []string{
			strconv.Itoa(r.Index),
			fmtTime(r.Start),
			fmtTime(r.End),
			fmtFloat(r.Price),
			fmtFloat(r.Curtailment),
			string(r.Action),
			fmtFloat(r.ChargeMW),
			fmtFloat(r.DischargeMW),
			fmtFloat(r.UptakeMW),
			fmtFloat(r.EnergyInMWh),
			fmtFloat(r.EnergyOutMWh),
			fmtFloat(r.LevelStart),
			fmtFloat(r.LevelEnd),
			fmtFloat(r.Stored),
			fmtFloat(r.Withdrawn),
			fmtFloat(r.ChargingCost),
			fmtFloat(r.DischargingRevenue),
			fmtFloat(r.VariableCost),
			fmtFloat(r.CurtailmentCredit),
			fmtFloat(r.PNL),
			fmtFloat(r.CumPNL),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
