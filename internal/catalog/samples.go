package catalog

// Worked examples appended to import templates

var contractSample = map[string]string{
	"ctr_num":    "CTR-2024-001",
	"vendor_id":  "1",
	"office_id":  "1",
	"start_date": "2024-01-01",
	"end_date":   "2024-12-31",
	"currency":   "EUR",
	"terms":      `{"payment_days":30,"fuel_surcharge":true}`,
	"active":     "true",
}

var slabRateSample = map[string]string{
	"contract_id": "1",
	"slab_type":   "weight",
	"min_value":   "0",
	"max_value":   "1000",
	"rate":        "12.5",
}

var roleSample = map[string]string{
	"code":               "DISPATCH",
	"name":               "Dispatcher",
	"description":        "Plans daily trips",
	"active":             "true",
	RolePrivilegesColumn: `["contracts.view","vehicles.view","vehicles.edit"]`,
}
