package catalog

// ---------- SPOTS ----------

type UpdateSpotRequest struct {
	Active     *bool `json:"active"`
	HasCharger *bool `json:"has_charger"`
}
