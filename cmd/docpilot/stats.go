package main

// Run executes the stats command.
func (c *StatsCmd) Run(deps *Dependencies) error {
	stats, err := deps.Catalog.Stats(deps.Ctx)
	if err != nil {
		return err
	}
	writeJSON(deps.Stdout, stats)
	return nil
}
