package commands

import (
	"fmt"
	"sort"

	"github.com/mosaicnetworks/synod/src/config"
	"github.com/mosaicnetworks/synod/src/paxos"
	"github.com/mosaicnetworks/synod/src/replog"
	"github.com/mosaicnetworks/synod/src/store"
	"github.com/spf13/cobra"
)

var showAcceptor bool

//NewLogCmd returns the command that dumps the durable log of a stopped node
func NewLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Dump the log of a stopped node",
		Long: `Open the database of a node that is not running and print the
committed entries, in slot order. The database is locked while a node runs.`,
		RunE: dumpLog,
	}

	cmd.Flags().String("datadir", _config.Synod.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("store", _config.Synod.Store, "Database backend (badger, bolt)")
	cmd.Flags().String("db", _config.Synod.DatabaseDir, "Database directory")
	cmd.Flags().BoolVar(&showAcceptor, "acceptor", false, "Also print the acceptor state of every slot")

	return cmd
}

func dumpLog(cmd *cobra.Command, args []string) error {
	if err := bindFlagsLoadViper(cmd); err != nil {
		return err
	}

	_config.Synod.SetDataDir(_config.Synod.DataDir)

	logger := newLogger("warn", "").WithField("prefix", "synod")

	var db store.Store
	var err error

	switch _config.Synod.Store {
	case config.BadgerStore:
		db, err = store.NewBadgerStore(_config.Synod.DatabaseDir, logger)
	case config.BoltStore:
		db, err = store.NewBoltStore(_config.Synod.BoltDir())
	default:
		return fmt.Errorf("cannot dump a %s store", _config.Synod.Store)
	}
	if err != nil {
		return err
	}
	defer db.Close()

	log, err := replog.NewLog(db, nil, 0, logger)
	if err != nil {
		return err
	}

	for _, e := range log.Entries() {
		fmt.Printf("%d\t%s\n", e.Slot, e.Event)
	}

	fmt.Printf("\nnext slot: %d, holes: %v\n", log.NextAvailableSlot(), log.FindHoles())

	if !showAcceptor {
		return nil
	}

	slots, err := db.Load()
	if err != nil {
		return err
	}

	fmt.Println("\nSLOT\tMAX_PREPARE\tACC_NUM\tACC_VAL")
	for _, slot := range sortedSlots(slots) {
		st := slots[slot]
		fmt.Printf("%d\t%s\t%s\t%s\n",
			slot,
			formatNumber(st.MaxPrepare),
			formatNumber(st.AccNum),
			st.AccVal)
	}

	return nil
}

func sortedSlots(states map[int]*paxos.AcceptorSlotState) []int {
	slots := make([]int, 0, len(states))
	for s := range states {
		slots = append(slots, s)
	}
	sort.Ints(slots)
	return slots
}

func formatNumber(n *paxos.ProposalNumber) string {
	if n == nil {
		return "-"
	}
	return n.String()
}
