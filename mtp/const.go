package mtp

// Standard PTP/MTP code tables. Vendor (camera) extensions are not
// carried; Android extensions live in android.go.

// access capability
const AC_ReadWrite = 0x0000
const AC_ReadOnly = 0x0001
const AC_ReadOnly_with_Object_Deletion = 0x0002

var AC_names = map[int]string{0x0000: "ReadWrite",
	0x0001: "ReadOnly",
	0x0002: "ReadOnly_with_Object_Deletion",
}

// association type
const AT_Undefined = 0x0000
const AT_GenericFolder = 0x0001
const AT_Album = 0x0002

var AT_names = map[int]string{0x0000: "Undefined",
	0x0001: "GenericFolder",
	0x0002: "Album",
}

// device property code
const DPC_Undefined = 0x5000
const DPC_BatteryLevel = 0x5001
const DPC_FunctionalMode = 0x5002
const DPC_ImageSize = 0x5003
const DPC_DateTime = 0x5011
const DPC_MTP_SynchronizationPartner = 0xD401
const DPC_MTP_DeviceFriendlyName = 0xD402
const DPC_MTP_VolumeLevel = 0xD403
const DPC_MTP_DeviceIcon = 0xD405
const DPC_MTP_SessionInitiatorInfo = 0xD406
const DPC_MTP_PerceivedDeviceType = 0xD407

var DPC_names = map[int]string{0x5000: "Undefined",
	0x5001: "BatteryLevel",
	0x5002: "FunctionalMode",
	0x5003: "ImageSize",
	0x5011: "DateTime",
	0xD401: "MTP_SynchronizationPartner",
	0xD402: "MTP_DeviceFriendlyName",
	0xD403: "MTP_VolumeLevel",
	0xD405: "MTP_DeviceIcon",
	0xD406: "MTP_SessionInitiatorInfo",
	0xD407: "MTP_PerceivedDeviceType",
}

// device property form field
const DPFF_None = 0x00
const DPFF_Range = 0x01
const DPFF_Enumeration = 0x02
const DPFF_DateTime = 0x03

var DPFF_names = map[int]string{0x00: "None",
	0x01: "Range",
	0x02: "Enumeration",
	0x03: "DateTime",
}

// device property get/set
const DPGS_Get = 0x00
const DPGS_GetSet = 0x01

var DPGS_names = map[int]string{0x00: "Get",
	0x01: "GetSet",
}

// data type code
const DTC_UNDEF = 0x0000
const DTC_INT8 = 0x0001
const DTC_UINT8 = 0x0002
const DTC_INT16 = 0x0003
const DTC_UINT16 = 0x0004
const DTC_INT32 = 0x0005
const DTC_UINT32 = 0x0006
const DTC_INT64 = 0x0007
const DTC_UINT64 = 0x0008
const DTC_INT128 = 0x0009
const DTC_UINT128 = 0x000A
const DTC_ARRAY_MASK = 0x4000
const DTC_AINT8 = 0x4001
const DTC_AUINT8 = 0x4002
const DTC_AINT16 = 0x4003
const DTC_AUINT16 = 0x4004
const DTC_AINT32 = 0x4005
const DTC_AUINT32 = 0x4006
const DTC_AINT64 = 0x4007
const DTC_AUINT64 = 0x4008
const DTC_AINT128 = 0x4009
const DTC_AUINT128 = 0x400A
const DTC_STR = 0xFFFF

var DTC_names = map[int]string{0x0000: "UNDEF",
	0x0001: "INT8",
	0x0002: "UINT8",
	0x0003: "INT16",
	0x0004: "UINT16",
	0x0005: "INT32",
	0x0006: "UINT32",
	0x0007: "INT64",
	0x0008: "UINT64",
	0x0009: "INT128",
	0x000A: "UINT128",
	0x4000: "ARRAY_MASK",
	0x4001: "AINT8",
	0x4002: "AUINT8",
	0x4003: "AINT16",
	0x4004: "AUINT16",
	0x4005: "AINT32",
	0x4006: "AUINT32",
	0x4007: "AINT64",
	0x4008: "AUINT64",
	0x4009: "AINT128",
	0x400A: "AUINT128",
	0xFFFF: "STR",
}

// event code
const EC_Undefined = 0x4000
const EC_CancelTransaction = 0x4001
const EC_ObjectAdded = 0x4002
const EC_ObjectRemoved = 0x4003
const EC_StoreAdded = 0x4004
const EC_StoreRemoved = 0x4005
const EC_DevicePropChanged = 0x4006
const EC_ObjectInfoChanged = 0x4007
const EC_DeviceInfoChanged = 0x4008
const EC_RequestObjectTransfer = 0x4009
const EC_StoreFull = 0x400A
const EC_DeviceReset = 0x400B
const EC_StorageInfoChanged = 0x400C
const EC_CaptureComplete = 0x400D
const EC_UnreportedStatus = 0x400E
const EC_MTP_ObjectPropChanged = 0xC801
const EC_MTP_ObjectPropDescChanged = 0xC802
const EC_MTP_ObjectReferencesChanged = 0xC803

var EC_names = map[int]string{0x4000: "Undefined",
	0x4001: "CancelTransaction",
	0x4002: "ObjectAdded",
	0x4003: "ObjectRemoved",
	0x4004: "StoreAdded",
	0x4005: "StoreRemoved",
	0x4006: "DevicePropChanged",
	0x4007: "ObjectInfoChanged",
	0x4008: "DeviceInfoChanged",
	0x4009: "RequestObjectTransfer",
	0x400A: "StoreFull",
	0x400B: "DeviceReset",
	0x400C: "StorageInfoChanged",
	0x400D: "CaptureComplete",
	0x400E: "UnreportedStatus",
	0xC801: "MTP_ObjectPropChanged",
	0xC802: "MTP_ObjectPropDescChanged",
	0xC803: "MTP_ObjectReferencesChanged",
}

// filesystem type
const FST_Undefined = 0x0000
const FST_GenericFlat = 0x0001
const FST_GenericHierarchical = 0x0002
const FST_DCF = 0x0003

var FST_names = map[int]string{0x0000: "Undefined",
	0x0001: "GenericFlat",
	0x0002: "GenericHierarchical",
	0x0003: "DCF",
}

// operation code
const OC_Undefined = 0x1000
const OC_GetDeviceInfo = 0x1001
const OC_OpenSession = 0x1002
const OC_CloseSession = 0x1003
const OC_GetStorageIDs = 0x1004
const OC_GetStorageInfo = 0x1005
const OC_GetNumObjects = 0x1006
const OC_GetObjectHandles = 0x1007
const OC_GetObjectInfo = 0x1008
const OC_GetObject = 0x1009
const OC_GetThumb = 0x100A
const OC_DeleteObject = 0x100B
const OC_SendObjectInfo = 0x100C
const OC_SendObject = 0x100D
const OC_InitiateCapture = 0x100E
const OC_FormatStore = 0x100F
const OC_ResetDevice = 0x1010
const OC_SelfTest = 0x1011
const OC_SetObjectProtection = 0x1012
const OC_PowerDown = 0x1013
const OC_GetDevicePropDesc = 0x1014
const OC_GetDevicePropValue = 0x1015
const OC_SetDevicePropValue = 0x1016
const OC_ResetDevicePropValue = 0x1017
const OC_TerminateOpenCapture = 0x1018
const OC_MoveObject = 0x1019
const OC_CopyObject = 0x101A
const OC_GetPartialObject = 0x101B
const OC_InitiateOpenCapture = 0x101C
const OC_MTP_GetObjectPropsSupported = 0x9801
const OC_MTP_GetObjectPropDesc = 0x9802
const OC_MTP_GetObjectPropValue = 0x9803
const OC_MTP_SetObjectPropValue = 0x9804
const OC_MTP_GetObjPropList = 0x9805
const OC_MTP_SetObjPropList = 0x9806
const OC_MTP_GetInterdependendPropdesc = 0x9807
const OC_MTP_SendObjectPropList = 0x9808
const OC_MTP_GetObjectReferences = 0x9810
const OC_MTP_SetObjectReferences = 0x9811
const OC_MTP_Skip = 0x9820

var OC_names = map[int]string{0x1000: "Undefined",
	0x1001: "GetDeviceInfo",
	0x1002: "OpenSession",
	0x1003: "CloseSession",
	0x1004: "GetStorageIDs",
	0x1005: "GetStorageInfo",
	0x1006: "GetNumObjects",
	0x1007: "GetObjectHandles",
	0x1008: "GetObjectInfo",
	0x1009: "GetObject",
	0x100A: "GetThumb",
	0x100B: "DeleteObject",
	0x100C: "SendObjectInfo",
	0x100D: "SendObject",
	0x100E: "InitiateCapture",
	0x100F: "FormatStore",
	0x1010: "ResetDevice",
	0x1011: "SelfTest",
	0x1012: "SetObjectProtection",
	0x1013: "PowerDown",
	0x1014: "GetDevicePropDesc",
	0x1015: "GetDevicePropValue",
	0x1016: "SetDevicePropValue",
	0x1017: "ResetDevicePropValue",
	0x1018: "TerminateOpenCapture",
	0x1019: "MoveObject",
	0x101A: "CopyObject",
	0x101B: "GetPartialObject",
	0x101C: "InitiateOpenCapture",
	0x9801: "MTP_GetObjectPropsSupported",
	0x9802: "MTP_GetObjectPropDesc",
	0x9803: "MTP_GetObjectPropValue",
	0x9804: "MTP_SetObjectPropValue",
	0x9805: "MTP_GetObjPropList",
	0x9806: "MTP_SetObjPropList",
	0x9807: "MTP_GetInterdependendPropdesc",
	0x9808: "MTP_SendObjectPropList",
	0x9810: "MTP_GetObjectReferences",
	0x9811: "MTP_SetObjectReferences",
	0x9820: "MTP_Skip",
}

// object format code
const OFC_Undefined = 0x3000
const OFC_Association = 0x3001
const OFC_Script = 0x3002
const OFC_Executable = 0x3003
const OFC_Text = 0x3004
const OFC_HTML = 0x3005
const OFC_DPOF = 0x3006
const OFC_AIFF = 0x3007
const OFC_WAV = 0x3008
const OFC_MP3 = 0x3009
const OFC_AVI = 0x300A
const OFC_MPEG = 0x300B
const OFC_ASF = 0x300C
const OFC_EXIF_JPEG = 0x3801
const OFC_TIFF_EP = 0x3802
const OFC_BMP = 0x3804
const OFC_GIF = 0x3807
const OFC_JFIF = 0x3808
const OFC_PICT = 0x380A
const OFC_PNG = 0x380B
const OFC_TIFF = 0x380D
const OFC_JP2 = 0x380F
const OFC_JPX = 0x3810
const OFC_DNG = 0x3811
const OFC_MTP_UndefinedFirmware = 0xB802
const OFC_MTP_WindowsImageFormat = 0xB881
const OFC_MTP_UndefinedAudio = 0xB900
const OFC_MTP_WMA = 0xB901
const OFC_MTP_OGG = 0xB902
const OFC_MTP_AAC = 0xB903
const OFC_MTP_FLAC = 0xB906
const OFC_MTP_UndefinedVideo = 0xB980
const OFC_MTP_WMV = 0xB981
const OFC_MTP_MP4 = 0xB982
const OFC_MTP_3GP = 0xB984
const OFC_MTP_AbstractAudioAlbum = 0xBA03
const OFC_MTP_AbstractAudioVideoPlaylist = 0xBA05
const OFC_MTP_WPLPlaylist = 0xBA10
const OFC_MTP_M3UPlaylist = 0xBA11
const OFC_MTP_MPLPlaylist = 0xBA12
const OFC_MTP_ASXPlaylist = 0xBA13
const OFC_MTP_PLSPlaylist = 0xBA14
const OFC_MTP_XMLDocument = 0xBA82
const OFC_MTP_MSWordDocument = 0xBA83
const OFC_MTP_MSExcelSpreadsheetXLS = 0xBA85
const OFC_MTP_MSPowerpointPresentationPPT = 0xBA86

var OFC_names = map[int]string{0x3000: "Undefined",
	0x3001: "Association",
	0x3002: "Script",
	0x3003: "Executable",
	0x3004: "Text",
	0x3005: "HTML",
	0x3006: "DPOF",
	0x3007: "AIFF",
	0x3008: "WAV",
	0x3009: "MP3",
	0x300A: "AVI",
	0x300B: "MPEG",
	0x300C: "ASF",
	0x3801: "EXIF_JPEG",
	0x3802: "TIFF_EP",
	0x3804: "BMP",
	0x3807: "GIF",
	0x3808: "JFIF",
	0x380A: "PICT",
	0x380B: "PNG",
	0x380D: "TIFF",
	0x380F: "JP2",
	0x3810: "JPX",
	0x3811: "DNG",
	0xB802: "MTP_UndefinedFirmware",
	0xB881: "MTP_WindowsImageFormat",
	0xB900: "MTP_UndefinedAudio",
	0xB901: "MTP_WMA",
	0xB902: "MTP_OGG",
	0xB903: "MTP_AAC",
	0xB906: "MTP_FLAC",
	0xB980: "MTP_UndefinedVideo",
	0xB981: "MTP_WMV",
	0xB982: "MTP_MP4",
	0xB984: "MTP_3GP",
	0xBA03: "MTP_AbstractAudioAlbum",
	0xBA05: "MTP_AbstractAudioVideoPlaylist",
	0xBA10: "MTP_WPLPlaylist",
	0xBA11: "MTP_M3UPlaylist",
	0xBA12: "MTP_MPLPlaylist",
	0xBA13: "MTP_ASXPlaylist",
	0xBA14: "MTP_PLSPlaylist",
	0xBA82: "MTP_XMLDocument",
	0xBA83: "MTP_MSWordDocument",
	0xBA85: "MTP_MSExcelSpreadsheetXLS",
	0xBA86: "MTP_MSPowerpointPresentationPPT",
}

// object property code
const OPC_StorageID = 0xDC01
const OPC_ObjectFormat = 0xDC02
const OPC_ProtectionStatus = 0xDC03
const OPC_ObjectSize = 0xDC04
const OPC_AssociationType = 0xDC05
const OPC_AssociationDesc = 0xDC06
const OPC_ObjectFileName = 0xDC07
const OPC_DateCreated = 0xDC08
const OPC_DateModified = 0xDC09
const OPC_Keywords = 0xDC0A
const OPC_ParentObject = 0xDC0B
const OPC_AllowedFolderContents = 0xDC0C
const OPC_Hidden = 0xDC0D
const OPC_SystemObject = 0xDC0E
const OPC_PersistantUniqueObjectIdentifier = 0xDC41
const OPC_SyncID = 0xDC42
const OPC_PropertyBag = 0xDC43
const OPC_Name = 0xDC44
const OPC_Artist = 0xDC46
const OPC_DateAuthored = 0xDC47
const OPC_DateAdded = 0xDC4E
const OPC_NonConsumable = 0xDC4F
const OPC_Width = 0xDC87
const OPC_Height = 0xDC88
const OPC_Duration = 0xDC89
const OPC_AlbumName = 0xDC9A
const OPC_AlbumArtist = 0xDC9B
const OPC_DisplayName = 0xDCE0

var OPC_names = map[int]string{0xDC01: "StorageID",
	0xDC02: "ObjectFormat",
	0xDC03: "ProtectionStatus",
	0xDC04: "ObjectSize",
	0xDC05: "AssociationType",
	0xDC06: "AssociationDesc",
	0xDC07: "ObjectFileName",
	0xDC08: "DateCreated",
	0xDC09: "DateModified",
	0xDC0A: "Keywords",
	0xDC0B: "ParentObject",
	0xDC0C: "AllowedFolderContents",
	0xDC0D: "Hidden",
	0xDC0E: "SystemObject",
	0xDC41: "PersistantUniqueObjectIdentifier",
	0xDC42: "SyncID",
	0xDC43: "PropertyBag",
	0xDC44: "Name",
	0xDC46: "Artist",
	0xDC47: "DateAuthored",
	0xDC4E: "DateAdded",
	0xDC4F: "NonConsumable",
	0xDC87: "Width",
	0xDC88: "Height",
	0xDC89: "Duration",
	0xDC9A: "AlbumName",
	0xDC9B: "AlbumArtist",
	0xDCE0: "DisplayName",
}

// protection status
const PS_NoProtection = 0x0000
const PS_ReadOnly = 0x0001
const PS_MTP_ReadOnlyData = 0x8002
const PS_MTP_NonTransferableData = 0x8003

var PS_names = map[int]string{0x0000: "NoProtection",
	0x0001: "ReadOnly",
	0x8002: "MTP_ReadOnlyData",
	0x8003: "MTP_NonTransferableData",
}

// return code
const RC_Undefined = 0x2000
const RC_OK = 0x2001
const RC_GeneralError = 0x2002
const RC_SessionNotOpen = 0x2003
const RC_InvalidTransactionID = 0x2004
const RC_OperationNotSupported = 0x2005
const RC_ParameterNotSupported = 0x2006
const RC_IncompleteTransfer = 0x2007
const RC_InvalidStorageId = 0x2008
const RC_InvalidObjectHandle = 0x2009
const RC_DevicePropNotSupported = 0x200A
const RC_InvalidObjectFormatCode = 0x200B
const RC_StoreFull = 0x200C
const RC_ObjectWriteProtected = 0x200D
const RC_StoreReadOnly = 0x200E
const RC_AccessDenied = 0x200F
const RC_NoThumbnailPresent = 0x2010
const RC_SelfTestFailed = 0x2011
const RC_PartialDeletion = 0x2012
const RC_StoreNotAvailable = 0x2013
const RC_SpecificationByFormatUnsupported = 0x2014
const RC_NoValidObjectInfo = 0x2015
const RC_InvalidCodeFormat = 0x2016
const RC_UnknownVendorCode = 0x2017
const RC_CaptureAlreadyTerminated = 0x2018
const RC_DeviceBusy = 0x2019
const RC_InvalidParentObject = 0x201A
const RC_InvalidDevicePropFormat = 0x201B
const RC_InvalidDevicePropValue = 0x201C
const RC_InvalidParameter = 0x201D
const RC_SessionAlreadyOpened = 0x201E
const RC_TransactionCanceled = 0x201F
const RC_SpecificationOfDestinationUnsupported = 0x2020
const RC_MTP_Undefined = 0xA800
const RC_MTP_Invalid_ObjectPropCode = 0xA801
const RC_MTP_Invalid_ObjectProp_Format = 0xA802
const RC_MTP_Invalid_ObjectProp_Value = 0xA803
const RC_MTP_Invalid_ObjectReference = 0xA804
const RC_MTP_Invalid_Dataset = 0xA806
const RC_MTP_Specification_By_Group_Unsupported = 0xA807
const RC_MTP_Specification_By_Depth_Unsupported = 0xA808
const RC_MTP_Object_Too_Large = 0xA809
const RC_MTP_ObjectProp_Not_Supported = 0xA80A

var RC_names = map[int]string{0x2000: "Undefined",
	0x2001: "OK",
	0x2002: "GeneralError",
	0x2003: "SessionNotOpen",
	0x2004: "InvalidTransactionID",
	0x2005: "OperationNotSupported",
	0x2006: "ParameterNotSupported",
	0x2007: "IncompleteTransfer",
	0x2008: "InvalidStorageId",
	0x2009: "InvalidObjectHandle",
	0x200A: "DevicePropNotSupported",
	0x200B: "InvalidObjectFormatCode",
	0x200C: "StoreFull",
	0x200D: "ObjectWriteProtected",
	0x200E: "StoreReadOnly",
	0x200F: "AccessDenied",
	0x2010: "NoThumbnailPresent",
	0x2011: "SelfTestFailed",
	0x2012: "PartialDeletion",
	0x2013: "StoreNotAvailable",
	0x2014: "SpecificationByFormatUnsupported",
	0x2015: "NoValidObjectInfo",
	0x2016: "InvalidCodeFormat",
	0x2017: "UnknownVendorCode",
	0x2018: "CaptureAlreadyTerminated",
	0x2019: "DeviceBusy",
	0x201A: "InvalidParentObject",
	0x201B: "InvalidDevicePropFormat",
	0x201C: "InvalidDevicePropValue",
	0x201D: "InvalidParameter",
	0x201E: "SessionAlreadyOpened",
	0x201F: "TransactionCanceled",
	0x2020: "SpecificationOfDestinationUnsupported",
	0xA800: "MTP_Undefined",
	0xA801: "MTP_Invalid_ObjectPropCode",
	0xA802: "MTP_Invalid_ObjectProp_Format",
	0xA803: "MTP_Invalid_ObjectProp_Value",
	0xA804: "MTP_Invalid_ObjectReference",
	0xA806: "MTP_Invalid_Dataset",
	0xA807: "MTP_Specification_By_Group_Unsupported",
	0xA808: "MTP_Specification_By_Depth_Unsupported",
	0xA809: "MTP_Object_Too_Large",
	0xA80A: "MTP_ObjectProp_Not_Supported",
}

// storage
const ST_Undefined = 0x0000
const ST_FixedROM = 0x0001
const ST_RemovableROM = 0x0002
const ST_FixedRAM = 0x0003
const ST_RemovableRAM = 0x0004

var ST_names = map[int]string{0x0000: "Undefined",
	0x0001: "FixedROM",
	0x0002: "RemovableROM",
	0x0003: "FixedRAM",
	0x0004: "RemovableRAM",
}

const USB_CONTAINER_UNDEFINED = 0x0000
const USB_CONTAINER_COMMAND = 0x0001
const USB_CONTAINER_DATA = 0x0002
const USB_CONTAINER_RESPONSE = 0x0003
const USB_CONTAINER_EVENT = 0x0004

var USB_names = map[int]string{0x0000: "CONTAINER_UNDEFINED",
	0x0001: "CONTAINER_COMMAND",
	0x0002: "CONTAINER_DATA",
	0x0003: "CONTAINER_RESPONSE",
	0x0004: "CONTAINER_EVENT",
}

const VENDOR_MICROSOFT = 0x00000006
