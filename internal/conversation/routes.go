package conversation

import (
	"regexp"

	"github.com/honeynil/ShopBotLedger/internal/notify"
	service "github.com/honeynil/ShopBotLedger/internal/services"
)

// Button tokens sent back by the transport.
const (
	BtnShop        = "menu:shop"
	BtnWallet      = "menu:wallet"
	BtnReferral    = "menu:referral"
	BtnDaily       = "menu:daily"
	BtnSpin        = "menu:spin"
	BtnAvatar      = "menu:avatar"
	BtnLeaderboard = "menu:leaderboard"
	BtnOrders      = "menu:orders"
	BtnCancel      = "flow:cancel"

	BtnLogin    = "auth:login"
	BtnRegister = "auth:register"

	BtnHistory         = "wallet:history"
	BtnReferralRefresh = "referral:refresh"
	BtnChannelJoined   = "channel:joined"
	BtnChannelSkip     = "channel:skip"
	BtnSpinGo          = "spin:go"

	BtnAdminPending    = "admin:pending"
	BtnAdminOrders     = "admin:orders"
	BtnAdminCoins      = "admin:coins"
	BtnAdminProducts   = "admin:products"
	BtnAdminNewProduct = "admin:product:new"

	productPrefix       = "product:"
	avatarPrefix        = "avatar:"
	adminEditPrefix     = "admin:product:edit:"
	adminTogglePrefix   = "admin:product:toggle:"
	adminDeleteOrderPfx = "admin:delete:"
)

var avatars = []string{"fox", "owl", "wolf", "cat"}

func exact(token string) *regexp.Regexp {
	return regexp.MustCompile("^" + regexp.QuoteMeta(token) + "$")
}

func prefixed(prefix, rest string) *regexp.Regexp {
	return regexp.MustCompile("^" + regexp.QuoteMeta(prefix) + rest + "$")
}

var (
	anyText   = regexp.MustCompile(`(?s)^\s*(.+?)\s*$`)
	keyRe     = `([a-z0-9][a-z0-9-]*)`
	idRe      = `(\d+)`
	txHashRe  = regexp.MustCompile(`^\s*((?:0x)?[0-9a-fA-F]{64})\s*$`)
	discRe    = regexp.MustCompile(`(?i)^\s*(disc-[0-9a-f]{8})\s*$`)
	startRe   = regexp.MustCompile(`^/start(?:\s+ref_(\d+))?\s*$`)
	withdrawR = regexp.MustCompile(`(?i)^\s*withdraw\s+(\d+(?:\.\d+)?)\s+(\S+)\s*$`)
	convertR  = regexp.MustCompile(`(?i)^\s*convert\s+(\d+)\s*$`)
	grantRe   = regexp.MustCompile(`^\s*(\d+)\s+(\d+)\s*$`)
)

func (m *Machine) buildRoutes() {
	m.global = []route{
		{KindCommand, startRe, m.start},
		{KindCommand, exact("/cancel"), m.cancel},
		{KindButton, exact(BtnCancel), m.cancel},
	}

	m.admin = []route{
		{KindCommand, exact("/admin"), m.adminMenu},
		{KindButton, prefixed(service.ConfirmOrderPrefix, idRe), m.adminConfirm},
		{KindButton, prefixed(service.CancelOrderPrefix, idRe), m.adminReject},
	}

	m.routes = map[State][]route{
		StateSelectingAction: {
			{KindButton, exact(BtnShop), m.showCatalog},
			{KindButton, prefixed(productPrefix, keyRe), m.selectProduct},
			{KindButton, exact(BtnWallet), m.showWallet},
			{KindButton, exact(BtnReferral), m.showReferral},
			{KindButton, exact(BtnDaily), m.claimDaily},
			{KindButton, exact(BtnSpin), m.promptSpin},
			{KindButton, exact(BtnAvatar), m.promptAvatar},
			{KindButton, exact(BtnLeaderboard), m.showLeaderboard},
			{KindButton, exact(BtnOrders), m.showOrders},
		},
		StateAwaitingPaymentProof: {
			{KindPhoto, anyText, m.submitProof},
			{KindText, txHashRe, m.submitProof},
			{KindText, discRe, m.applyDiscount},
		},
		StateRegisteringEmail: {
			{KindButton, exact(BtnLogin), m.promptLogin},
			{KindText, anyText, m.registerEmail},
		},
		StateRegisteringPassword: {
			{KindText, anyText, m.registerPassword},
		},
		StateLoggingInEmail: {
			{KindButton, exact(BtnRegister), m.promptRegister},
			{KindText, anyText, m.loginEmail},
		},
		StateLoggingInPassword: {
			{KindText, anyText, m.loginPassword},
		},
		StateWalletActions: {
			{KindText, withdrawR, m.withdraw},
			{KindText, convertR, m.convert},
			{KindButton, exact(BtnHistory), m.showHistory},
		},
		StateViewingReferral: {
			{KindButton, exact(BtnReferralRefresh), m.showReferral},
		},
		StateAwaitingChannelCheck: {
			{KindButton, exact(BtnChannelJoined), m.channelJoined},
			{KindButton, exact(BtnChannelSkip), m.channelSkip},
		},
		StateSelectingAvatar: {
			{KindButton, prefixed(avatarPrefix, `(\w+)`), m.selectAvatar},
		},
		StateSpinningWheel: {
			{KindButton, exact(BtnSpinGo), m.spin},
		},
		StateAdminActions: {
			{KindButton, exact(BtnAdminPending), m.adminPending},
			{KindButton, exact(BtnAdminOrders), m.adminRecent},
			{KindButton, exact(BtnAdminCoins), m.adminPromptCoins},
			{KindButton, exact(BtnAdminProducts), m.adminProducts},
			{KindButton, prefixed(adminDeleteOrderPfx, idRe), m.adminDelete},
		},
		StateAdminAddingCoins: {
			{KindText, grantRe, m.adminGrant},
		},
		StateAdminManagingProducts: {
			{KindButton, exact(BtnAdminNewProduct), m.adminNewProduct},
			{KindButton, prefixed(adminEditPrefix, keyRe), m.adminEditProduct},
			{KindButton, prefixed(adminTogglePrefix, keyRe), m.adminToggleProduct},
			{KindText, anyText, m.adminSaveProduct},
		},
	}
}

func btn(text, data string) notify.Button {
	return notify.Button{Text: text, Data: data}
}

func mainMenu() [][]notify.Button {
	return [][]notify.Button{
		notify.Row(btn("Shop", BtnShop), btn("My orders", BtnOrders)),
		notify.Row(btn("Wallet", BtnWallet), btn("Referrals", BtnReferral)),
		notify.Row(btn("Daily coins", BtnDaily), btn("Spin the wheel", BtnSpin)),
		notify.Row(btn("Leaderboard", BtnLeaderboard), btn("Avatar", BtnAvatar)),
	}
}

func cancelKeyboard() [][]notify.Button {
	return [][]notify.Button{notify.Row(btn("Cancel", BtnCancel))}
}

func adminMenu() [][]notify.Button {
	return [][]notify.Button{
		notify.Row(btn("Pending orders", BtnAdminPending), btn("Recent orders", BtnAdminOrders)),
		notify.Row(btn("Grant coins", BtnAdminCoins), btn("Products", BtnAdminProducts)),
		notify.Row(btn("Exit", BtnCancel)),
	}
}
